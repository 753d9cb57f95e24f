// Package scrape provides HTML-scraping quote sources for Kenyan market sites.
package scrape

import "errors"

var (
	// ErrNoTableFound indicates that no price table with data rows was found in the page.
	ErrNoTableFound = errors.New("no price table found in page")
	// ErrNoPriceFound indicates that no extraction strategy matched a price in the page.
	ErrNoPriceFound = errors.New("no price found in page")
)
