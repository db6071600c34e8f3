package utils

import "strconv"

// BuildProductsListCacheKey keys a catalog listing by its exact filter values.
// Values are quoted so "absent" and "empty" never collide, and case is kept
// because category and search matching are case-sensitive.
func BuildProductsListCacheKey(category, search *string) string {
	c := "-"
	if category != nil {
		c = strconv.Quote(*category)
	}
	s := "-"
	if search != nil {
		s = strconv.Quote(*search)
	}

	return "products:list:v1:category=" + c + ":search=" + s
}

func BuildProductCacheKey(id string) string {
	return "products:id:v1:" + id
}
