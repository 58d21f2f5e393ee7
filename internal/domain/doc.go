// Package domain models the records flowing through the disaster response
// coordination API.
//
// # Official updates
//
// The official-updates pipeline aggregates headlines from several upstream
// sources (ReliefWeb search pages, the FEMA Open API, FEMA news releases)
// into [UpdateRecord] values. Records are created fresh per aggregation run
// and never mutated afterwards. IDs are only unique within a single source;
// the source tag disambiguates across sources.
//
// # Scraped dates
//
// Upstream markup carries dates in wildly inconsistent forms: relative
// phrases ("Posted 2 hours ago"), prefixed absolute dates ("Posted on
// 21 Jul 2024"), bare dates, or nothing at all. [NormalizeScrapedDate]
// collapses all of them into an absolute instant and never fails; anything
// unparsable falls back to the current clock time so every emitted record
// sorts deterministically.
//
// Absolute dates in source markup carry no timezone information and are
// parsed as UTC midnight: "Posted on 21 Jul 2024" becomes
// 2024-07-21T00:00:00Z.
//
// # Time
//
// All time reads go through a package-level clock swappable via [SetClock],
// so tests can freeze "now" and relative-date arithmetic stays deterministic.
package domain
