// Package notion publishes structured summaries as pages in one or more Notion
// databases.
//
// Each configured destination receives the title and meeting date, plus the
// consultant and client properties when that destination includes them. Page
// bodies carry every summary field in full: long values are split across rich
// text items and paragraph blocks so nothing is truncated. Destinations are
// written independently; one failing never prevents the others.
package notion
