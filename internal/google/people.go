package google

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"google.golang.org/api/people/v1"
)

const (
	personFields       = "names,emailAddresses,photos"
	DefaultContactsMax = 50
)

// Person is the trimmed view of a People API record.
type Person struct {
	ResourceName string `json:"resourceName"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	PhotoURL     string `json:"photoUrl,omitempty"`
}

func toPerson(p *people.Person) Person {
	out := Person{ResourceName: p.ResourceName}
	if len(p.Names) > 0 {
		out.Name = p.Names[0].DisplayName
	}
	if len(p.EmailAddresses) > 0 {
		out.Email = p.EmailAddresses[0].Value
	}
	if len(p.Photos) > 0 {
		out.PhotoURL = p.Photos[0].Url
	}
	return out
}

type People struct {
	f   *Factory
	svc *people.Service
}

func (f *Factory) People(ctx context.Context, tok *oauth2.Token) (*People, error) {
	svc, err := people.NewService(ctx, f.clientOptions(tok)...)
	if err != nil {
		return nil, fmt.Errorf("creating people client: %w", err)
	}
	return &People{f: f, svc: svc}, nil
}

func (p *People) Profile(ctx context.Context) (Person, error) {
	return call(ctx, p.f, ServicePeople, func(ctx context.Context) (Person, error) {
		me, err := p.svc.People.Get("people/me").PersonFields(personFields).Context(ctx).Do()
		if err != nil {
			return Person{}, err
		}
		return toPerson(me), nil
	})
}

// Contacts searches the user's contacts for query, or lists their
// connections when query is empty.
func (p *People) Contacts(ctx context.Context, query string, limit int) ([]Person, error) {
	if limit <= 0 {
		limit = DefaultContactsMax
	}
	return call(ctx, p.f, ServicePeople, func(ctx context.Context) ([]Person, error) {
		out := []Person{}
		if query != "" {
			resp, err := p.svc.People.SearchContacts().Query(query).ReadMask(personFields).
				PageSize(int64(limit)).Context(ctx).Do()
			if err != nil {
				return nil, err
			}
			for _, r := range resp.Results {
				if r.Person != nil {
					out = append(out, toPerson(r.Person))
				}
			}
			return out, nil
		}

		resp, err := p.svc.People.Connections.List("people/me").PersonFields(personFields).
			PageSize(int64(limit)).Context(ctx).Do()
		if err != nil {
			return nil, err
		}
		for _, c := range resp.Connections {
			out = append(out, toPerson(c))
		}
		return out, nil
	})
}
