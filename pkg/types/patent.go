// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds the records that flow between harvest stages and the
// configuration shared by the CLI and the pipeline.
package types

import "slices"

// LinkRecord is a discovered patent page reference. Two records are equal
// when their normalized absolute URLs are byte-equal.
type LinkRecord struct {
	// Link is the absolute URL of a patent detail page.
	Link string `json:"link" yaml:"link"`
}

// InventorQuery is a synthesized search URL listing one inventor's patents.
type InventorQuery struct {
	// Name is the inventor display name as shown on the patent page.
	Name string `json:"name" yaml:"name"`

	// Query is the absolute search URL for the inventor.
	Query string `json:"query" yaml:"query"`
}

// AuthorPatentGroup is the set of patent links found for one inventor,
// de-duplicated and in first-seen order.
type AuthorPatentGroup struct {
	Name  string   `json:"name" yaml:"name"`
	Links []string `json:"links" yaml:"links"`

	// Dir is the result directory name; empty derives it from Name.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
}

// PatentRecord holds the fields extracted from one patent detail page.
// Every field except Link may be empty.
type PatentRecord struct {
	// Link is the page the record was extracted from.
	Link string `json:"link" yaml:"link"`

	Title string `json:"title" yaml:"title"`

	// CurrentAssignee lists assignee names in page order.
	CurrentAssignee []string `json:"current_assignee" yaml:"current_assignee"`

	// Inventors lists inventor names in page order.
	Inventors []string `json:"inventors" yaml:"inventors"`

	// PriorityDate and PublicationDate use the DD.MM.YYYY layout.
	PriorityDate    string `json:"priority_date" yaml:"priority_date"`
	PublicationDate string `json:"publication_date" yaml:"publication_date"`

	// ClassificationCodes is the ", "-joined list of codes on the page.
	ClassificationCodes string `json:"classification_codes" yaml:"classification_codes"`

	PatentCode string `json:"patent_code" yaml:"patent_code"`
	Country    string `json:"country" yaml:"country"`
	Abstract   string `json:"abstract" yaml:"abstract"`

	// PathToPDFFile is the last three path segments of the stored document
	// (the downloaded PDF or the HTML fallback).
	PathToPDFFile string `json:"path_to_pdf_file" yaml:"path_to_pdf_file"`
}

// Clone returns a deep copy of r; slices are not shared.
func (r PatentRecord) Clone() PatentRecord {
	c := r
	c.CurrentAssignee = slices.Clone(r.CurrentAssignee)
	c.Inventors = slices.Clone(r.Inventors)
	return c
}

// AuthorResult is the extraction output for one inventor directory.
type AuthorResult struct {
	// Name is the inventor the records were collected for.
	Name string `json:"name" yaml:"name"`

	// Dir is the author's output directory (<result>/<name>).
	Dir string `json:"dir" yaml:"dir"`

	Records []PatentRecord `json:"records" yaml:"records"`

	// Discarded counts pages rejected by the classification gate or lost
	// to navigation failures.
	Discarded int `json:"discarded" yaml:"discarded"`
}
