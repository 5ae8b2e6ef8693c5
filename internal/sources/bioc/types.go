package bioc

import "encoding/xml"

// Collection is the root element of a BioC XML response.
type Collection struct {
	XMLName   xml.Name   `xml:"collection"`
	Source    string     `xml:"source"`
	Date      string     `xml:"date"`
	Documents []Document `xml:"document"`
}

// Document is one article in a collection.
type Document struct {
	ID       string    `xml:"id"`
	Infons   []Infon   `xml:"infon"`
	Passages []Passage `xml:"passage"`
}

// Passage is a raw BioC passage with its key/value infons.
type Passage struct {
	Infons []Infon `xml:"infon"`
	Offset int     `xml:"offset"`
	Text   string  `xml:"text"`
}

// Infon is a key/value annotation on a BioC element.
type Infon struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

// Infon returns the first infon with the given key.
func (p Passage) Infon(key string) (string, bool) {
	for _, in := range p.Infons {
		if in.Key == key {
			return in.Value, true
		}
	}
	return "", false
}
