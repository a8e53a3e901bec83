package domain

import "time"

// Category groups services, e.g. "Plumber".
type Category struct {
	ID           int64
	Name         string
	Path         string
	Icon         string
	ServiceCount int
}

// ServiceProviderInfo is the provider card shown on a service listing.
type ServiceProviderInfo struct {
	Name  string
	Image string
	Role  string
}

// Service is a bookable offering within a category.
type Service struct {
	ID            int64
	CategoryID    int64
	Title         string
	Description   string
	Price         float64
	OriginalPrice float64
	Rating        int
	ReviewCount   int
	Provider      ServiceProviderInfo
	Image         string
}

// Review is a customer review of a service.
type Review struct {
	ID         int64
	ServiceID  int64
	UserName   string
	Rating     int
	Comment    string
	Date       time.Time
	UserAvatar string
}

// ServiceDetail is a service with its category and reviews, newest first.
type ServiceDetail struct {
	Service  Service
	Category Category
	Reviews  []Review
}
