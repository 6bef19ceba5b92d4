package pubmed

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"strings"
)

// Record is the part of an EFetch article the bundles use
type Record struct {
	PMID        string
	Title       string
	Abstract    string
	FirstAuthor string
}

type articleSet struct {
	Articles []article `xml:"PubmedArticle"`
}

type article struct {
	PMID     string         `xml:"MedlineCitation>PMID"`
	Title    innerText      `xml:"MedlineCitation>Article>ArticleTitle"`
	Abstract []abstractPart `xml:"MedlineCitation>Article>Abstract>AbstractText"`
	Authors  []xmlAuthor    `xml:"MedlineCitation>Article>AuthorList>Author"`
}

type abstractPart struct {
	Label string
	Text  innerText
}

type xmlAuthor struct {
	LastName       string `xml:"LastName"`
	ForeName       string `xml:"ForeName"`
	Initials       string `xml:"Initials"`
	CollectiveName string `xml:"CollectiveName"`
}

// innerText collects all character data of an element, including text
// inside inline markup such as <i> or <sup>.
type innerText string

func (t *innerText) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var b strings.Builder
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch tt := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			b.Write(tt)
		}
	}
	*t = innerText(strings.TrimSpace(b.String()))
	return nil
}

// UnmarshalXML keeps the Label attribute and the full element text
func (p *abstractPart) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for _, attr := range start.Attr {
		if attr.Name.Local == "Label" {
			p.Label = strings.TrimSpace(attr.Value)
		}
	}
	return p.Text.UnmarshalXML(d, start)
}

func (a xmlAuthor) fullName() string {
	if c := strings.TrimSpace(a.CollectiveName); c != "" {
		return c
	}
	fore := strings.TrimSpace(a.ForeName)
	if fore == "" {
		fore = strings.TrimSpace(a.Initials)
	}
	return strings.TrimSpace(fore + " " + strings.TrimSpace(a.LastName))
}

func (a article) abstract() string {
	parts := make([]string, 0, len(a.Abstract))
	for _, p := range a.Abstract {
		text := string(p.Text)
		if text == "" {
			continue
		}
		if p.Label != "" {
			text = p.Label + ": " + text
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}

// ParseArticles decodes an EFetch PubmedArticleSet into records keyed by PMID
func ParseArticles(r io.Reader) (map[string]Record, error) {
	var set articleSet
	if err := xml.NewDecoder(r).Decode(&set); err != nil {
		return nil, err
	}

	out := make(map[string]Record, len(set.Articles))
	for _, a := range set.Articles {
		pmid := strings.TrimSpace(a.PMID)
		if pmid == "" {
			continue
		}
		rec := Record{
			PMID:     pmid,
			Title:    string(a.Title),
			Abstract: a.abstract(),
		}
		if len(a.Authors) > 0 {
			rec.FirstAuthor = a.Authors[0].fullName()
		}
		out[pmid] = rec
	}
	return out, nil
}

// FetchRecords retrieves abstracts and first authors via EFetch XML
func (c *Client) FetchRecords(ctx context.Context, pmids []string) (map[string]Record, error) {
	if len(pmids) == 0 {
		return map[string]Record{}, nil
	}

	params := url.Values{}
	params.Set("retmode", "xml")
	params.Set("id", strings.Join(pmids, ","))

	body, err := c.get(ctx, "efetch", params)
	if err != nil {
		return nil, err
	}

	records, err := ParseArticles(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode efetch response: %v", ErrUpstreamUnavailable, err)
	}
	return records, nil
}
