package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/mokurokubooks/mokuroku/pkg/models"
	"github.com/mokurokubooks/mokuroku/pkg/sourceclient"
	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
)

const OpenLibraryName = "openlibrary"

// OpenLibraryProvider looks books up on Open Library by ISBN, falling back to
// a title search. Confidence is higher for ISBN hits because the match is
// exact rather than fuzzy.
type OpenLibraryProvider struct {
	client  *sourceclient.Client
	baseURL string
}

func NewOpenLibraryProvider(client *sourceclient.Client, baseURL string) *OpenLibraryProvider {
	if baseURL == "" {
		baseURL = "https://openlibrary.org"
	}
	return &OpenLibraryProvider{client: client, baseURL: baseURL}
}

func (p *OpenLibraryProvider) Name() string {
	return OpenLibraryName
}

type openLibraryBook struct {
	Title       string `json:"title"`
	Publishers  []struct {
		Name string `json:"name"`
	} `json:"publishers"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Cover struct {
		Large string `json:"large"`
	} `json:"cover"`
	PublishDate string `json:"publish_date"`
}

type openLibrarySearch struct {
	Docs []struct {
		Title            string   `json:"title"`
		AuthorName       []string `json:"author_name"`
		FirstPublishYear int      `json:"first_publish_year"`
		CoverID          int      `json:"cover_i"`
		Publisher        []string `json:"publisher"`
		Language         []string `json:"language"`
	} `json:"docs"`
}

func (p *OpenLibraryProvider) Lookup(ctx context.Context, book *models.Book) ([]*models.MetadataCandidate, error) {
	if book.ISBN != nil && *book.ISBN != "" {
		return p.lookupISBN(ctx, *book.ISBN)
	}
	if book.Title != "" {
		return p.searchTitle(ctx, book.Title)
	}
	return []*models.MetadataCandidate{}, nil
}

func (p *OpenLibraryProvider) lookupISBN(ctx context.Context, isbn string) ([]*models.MetadataCandidate, error) {
	reqURL := fmt.Sprintf("%s/api/books?bibkeys=ISBN:%s&format=json&jscmd=data", p.baseURL, url.QueryEscape(isbn))
	resp, err := p.client.Do(ctx, &sourceclient.Request{
		URL:      reqURL,
		CacheKey: "isbn:" + isbn,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	payload := map[string]openLibraryBook{}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &sourceclient.TransportError{Source: OpenLibraryName, Err: err}
	}

	entry, ok := payload["ISBN:"+isbn]
	if !ok {
		return []*models.MetadataCandidate{}, nil
	}

	candidates := []*models.MetadataCandidate{}
	add := func(field, value string, confidence float64) {
		if value == "" {
			return
		}
		candidates = append(candidates, &models.MetadataCandidate{
			Field:      field,
			Value:      value,
			Confidence: confidence,
			Active:     true,
		})
	}

	add(models.FieldTitle, entry.Title, 0.9)
	if len(entry.Authors) > 0 {
		add(models.FieldAuthor, entry.Authors[0].Name, 0.9)
	}
	if len(entry.Publishers) > 0 {
		add(models.FieldPublisher, entry.Publishers[0].Name, 0.85)
	}
	add(models.FieldCover, entry.Cover.Large, 0.85)
	add(models.FieldYear, entry.PublishDate, 0.7)
	add(models.FieldIdentifier, isbn, 0.95)

	return candidates, nil
}

func (p *OpenLibraryProvider) searchTitle(ctx context.Context, title string) ([]*models.MetadataCandidate, error) {
	reqURL := fmt.Sprintf("%s/search.json?title=%s&limit=1", p.baseURL, url.QueryEscape(title))
	resp, err := p.client.Do(ctx, &sourceclient.Request{
		URL:      reqURL,
		CacheKey: "title:" + title,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	payload := openLibrarySearch{}
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return nil, &sourceclient.TransportError{Source: OpenLibraryName, Err: err}
	}
	if len(payload.Docs) == 0 {
		return []*models.MetadataCandidate{}, nil
	}
	doc := payload.Docs[0]

	candidates := []*models.MetadataCandidate{}
	add := func(field, value string, confidence float64) {
		if value == "" {
			return
		}
		candidates = append(candidates, &models.MetadataCandidate{
			Field:      field,
			Value:      value,
			Confidence: confidence,
			Active:     true,
		})
	}

	// Search hits are fuzzier than ISBN hits, so confidence is lower.
	add(models.FieldTitle, doc.Title, 0.7)
	if len(doc.AuthorName) > 0 {
		add(models.FieldAuthor, doc.AuthorName[0], 0.7)
	}
	if len(doc.Publisher) > 0 {
		add(models.FieldPublisher, doc.Publisher[0], 0.6)
	}
	if len(doc.Language) > 0 {
		add(models.FieldLanguage, doc.Language[0], 0.6)
	}
	if doc.FirstPublishYear > 0 {
		add(models.FieldYear, strconv.Itoa(doc.FirstPublishYear), 0.6)
	}
	if doc.CoverID > 0 {
		add(models.FieldCover, fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-L.jpg", doc.CoverID), 0.65)
	}

	return candidates, nil
}
