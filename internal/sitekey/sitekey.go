// Package sitekey derives and strips tenant prefixes on physical database keys.
package sitekey

import "strings"

// Delimiter separates the site id from the logical key.
const Delimiter = "/"

// DefaultSiteID is the implicit tenant; its keys carry no prefix.
const DefaultSiteID = ""

// Create prefixes key with the site id for non-default tenants.
func Create(siteID, key string) string {
	if siteID == DefaultSiteID {
		return key
	}
	return siteID + Delimiter + key
}

// Reset removes the site prefix added by Create. Keys without the prefix
// are returned unchanged.
func Reset(siteID, key string) string {
	if siteID == DefaultSiteID {
		return key
	}
	return strings.TrimPrefix(key, siteID+Delimiter)
}
