package models

// RouteQuery holds the query parameters of GET /v1/route.
type RouteQuery struct {
	FromLat float64 `query:"fromLat" validate:"gte=-90,lte=90"`
	FromLng float64 `query:"fromLng" validate:"gte=-180,lte=180"`
	ToLat   float64 `query:"toLat" validate:"gte=-90,lte=90"`
	ToLng   float64 `query:"toLng" validate:"gte=-180,lte=180"`
}
