package elasticsearch

// DefaultIndexName is the index service documents live in.
const DefaultIndexName = "servicehub_services"

// indexMapping stores title and description as wildcard fields so a
// case-insensitive wildcard query matches any substring, the same as the
// ILIKE search in PostgreSQL.
const indexMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0
  },
  "mappings": {
    "properties": {
      "id":             { "type": "long" },
      "category_id":    { "type": "long" },
      "title":          { "type": "wildcard" },
      "description":    { "type": "wildcard" },
      "price":          { "type": "scaled_float", "scaling_factor": 100 },
      "original_price": { "type": "scaled_float", "scaling_factor": 100 },
      "rating":         { "type": "integer" },
      "review_count":   { "type": "integer" },
      "provider": {
        "properties": {
          "name":  { "type": "keyword" },
          "image": { "type": "keyword", "index": false },
          "role":  { "type": "keyword" }
        }
      },
      "image":          { "type": "keyword", "index": false }
    }
  }
}`
