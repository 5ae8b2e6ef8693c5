package hgnc

import "encoding/xml"

// Result is the registry answer to one symbol lookup.
type Result struct {
	NumFound int
	Docs     []Record
}

// Record is a single approved gene entry.
type Record struct {
	HGNCID  string
	Symbol  string
	Name    string
	Aliases []string
}

// Solr XML envelope returned by /fetch.
type xmlResponse struct {
	XMLName xml.Name  `xml:"response"`
	Result  xmlResult `xml:"result"`
}

type xmlResult struct {
	NumFound int      `xml:"numFound,attr"`
	Docs     []xmlDoc `xml:"doc"`
}

type xmlDoc struct {
	Strs []xmlField `xml:"str"`
	Arrs []xmlArr   `xml:"arr"`
}

type xmlField struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type xmlArr struct {
	Name   string   `xml:"name,attr"`
	Values []string `xml:"str"`
}

func (d xmlDoc) str(name string) string {
	for _, f := range d.Strs {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}

func (d xmlDoc) arr(name string) []string {
	for _, a := range d.Arrs {
		if a.Name == name {
			return a.Values
		}
	}
	return nil
}

func (d xmlDoc) record() Record {
	aliases := append([]string{}, d.arr("alias_name")...)
	return Record{
		HGNCID:  d.str("hgnc_id"),
		Symbol:  d.str("symbol"),
		Name:    d.str("name"),
		Aliases: aliases,
	}
}
