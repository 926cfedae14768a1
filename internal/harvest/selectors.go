// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package harvest

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/patent-harvester/internal/browser"
)

// Selectors locates every page element the harvester reads. The defaults
// target Google Patents; a YAML file can override any subset.
type Selectors struct {
	// Search results pages.
	SearchInput      browser.Selector `yaml:"search_input"`
	NoResults        browser.Selector `yaml:"no_results"`
	ResultCount      browser.Selector `yaml:"result_count"`
	ResultsPerPage   browser.Selector `yaml:"results_per_page"`
	MaxResultsOption browser.Selector `yaml:"max_results_option"`
	ResultLink       browser.Selector `yaml:"result_link"`
	// ResultLinkAttr holds the page reference on a result item; when empty
	// the element's href is used.
	ResultLinkAttr string           `yaml:"result_link_attr"`
	NextPage       browser.Selector `yaml:"next_page"`

	// People panel anchors and the attribute marking inventor anchors.
	InventorLinks  browser.Selector `yaml:"inventor_links"`
	InventorAttr   string           `yaml:"inventor_attr"`
	InventorMarker string           `yaml:"inventor_marker"`

	// Patent detail pages.
	MoreClassifications browser.Selector `yaml:"more_classifications"`
	ClassificationCodes browser.Selector `yaml:"classification_codes"`
	Title               browser.Selector `yaml:"title"`
	PatentCode          browser.Selector `yaml:"patent_code"`
	People              browser.Selector `yaml:"people"`
	PeopleLink          string           `yaml:"people_link"`
	InventorLabel       string           `yaml:"inventor_label"`
	AssigneeLabel       string           `yaml:"assignee_label"`
	Country             browser.Selector `yaml:"country"`
	PriorityDate        browser.Selector `yaml:"priority_date"`
	PublicationEvent    browser.Selector `yaml:"publication_event"`
	PublicationDate     string           `yaml:"publication_date"`
	Abstract            browser.Selector `yaml:"abstract"`
	PDFLink             browser.Selector `yaml:"pdf_link"`
}

// DefaultSelectors returns the Google Patents selector set.
func DefaultSelectors() Selectors {
	return Selectors{
		SearchInput:      browser.CSS("input#searchInput"),
		NoResults:        browser.CSS("div#noResultsMessage"),
		ResultCount:      browser.CSS("span#numResultsLabel"),
		ResultsPerPage:   browser.CSS("dropdown-menu#resultsPerPage"),
		MaxResultsOption: browser.CSS("dropdown-menu#resultsPerPage paper-item:last-child"),
		ResultLink:       browser.CSS("search-result-item state-modifier[data-result]"),
		ResultLinkAttr:   "data-result",
		NextPage:         browser.CSS("search-paging > state-modifier:nth-of-type(3) > a"),

		InventorLinks:  browser.CSS("dl.important-people dd a"),
		InventorAttr:   "act",
		InventorMarker: "inventor",

		MoreClassifications: browser.CSS("section#classifications classification-viewer > div > div > div:first-child"),
		ClassificationCodes: browser.CSS("section#classifications classification-tree state-modifier a"),
		Title:               browser.CSS("h1#title"),
		PatentCode:          browser.CSS("h2#pubnum"),
		People:              browser.CSS("dl.important-people dt, dl.important-people dd"),
		PeopleLink:          "#link",
		InventorLabel:       "Inventor",
		AssigneeLabel:       "Current Assignee",
		Country:             browser.CSS("patent-result section header p"),
		PriorityDate:        browser.CSS("application-timeline div.priority"),
		PublicationEvent:    browser.CSS("application-timeline div.event"),
		PublicationDate:     "div.publication",
		Abstract:            browser.CSS("abstract > div"),
		PDFLink:             browser.CSS("patent-result section > header > div > a"),
	}
}

// LoadSelectors reads overrides from a YAML file on top of the defaults.
// An empty path returns the defaults.
func LoadSelectors(path string) (Selectors, error) {
	sel := DefaultSelectors()
	if path == "" {
		return sel, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return sel, fmt.Errorf("reading selectors: %w", err)
	}
	if err := yaml.Unmarshal(data, &sel); err != nil {
		return sel, fmt.Errorf("parsing selectors %s: %w", path, err)
	}
	return sel, nil
}
