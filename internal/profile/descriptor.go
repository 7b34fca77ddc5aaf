package profile

import (
	"bytes"
	"fmt"

	"github.com/antchfx/xmlquery"
)

// Descriptor is what the *.model XML contributes to a Result.
type Descriptor struct {
	ModelCount int
	Metadata   map[string]string
}

// ParseModel reads a 3MF model descriptor. It counts <object> elements at any
// depth and collects <metadata name="..."> text, later duplicates winning.
// Malformed XML yields an empty Descriptor.
func ParseModel(data []byte) Descriptor {
	d, _ := parseDescriptor(data)
	return d
}

// ParseMetadataXML collects <metadata name="..."> pairs from a vendor
// metadata document. Malformed XML yields an empty map.
func ParseMetadataXML(data []byte) map[string]string {
	d, _ := parseDescriptor(data)
	return d.Metadata
}

func parseDescriptor(data []byte) (Descriptor, error) {
	d := Descriptor{Metadata: map[string]string{}}

	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return d, fmt.Errorf("parse xml: %w", err)
	}

	walkElements(doc, func(n *xmlquery.Node) {
		switch n.Data {
		case "object":
			d.ModelCount++
		case "metadata":
			if name := n.SelectAttr("name"); name != "" {
				d.Metadata[name] = n.InnerText()
			}
		}
	})
	return d, nil
}

// walkElements visits element nodes in document order.
func walkElements(n *xmlquery.Node, fn func(*xmlquery.Node)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			fn(c)
		}
		walkElements(c, fn)
	}
}
