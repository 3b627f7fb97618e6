// Package main provides the serpwalk CLI.
//
// serpwalk searches Google for each query through a freshly provisioned
// Multilogin profile and stores the organic results.
//
// Usage:
//
//	serpwalk "open source rust" "go generics"
//	SERPWALK_CONFIG=prod.json serpwalk "query"
package main

import _ "time/tzdata"

func main() {
	Execute()
}
