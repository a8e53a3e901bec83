package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		query      string
		wantPage   int
		wantPer    int
		wantOffset int
	}{
		{"", 1, 20, 0},
		{"?page=3&per_page=10", 3, 10, 20},
		{"?page=0", 1, 20, 0},
		{"?page=-2", 1, 20, 0},
		{"?page=abc&per_page=x", 1, 20, 0},
		{"?per_page=100", 1, 100, 0},
		{"?per_page=101", 1, 20, 0},
		{"?per_page=0", 1, 20, 0},
		{"?page=2&per_page=5", 2, 5, 5},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/services/search/paint"+tt.query, nil)
			p := FromRequest(r)

			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantPer, p.PerPage)
			assert.Equal(t, tt.wantPer, p.Limit())
			assert.Equal(t, tt.wantOffset, p.Offset())
		})
	}
}
