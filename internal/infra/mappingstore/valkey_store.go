package mappingstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/valkey-io/valkey-go"

	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/faq"
	apperrors "github.com/AxialDev/faq-mapping-gladly-shopify/pkg/errors"
)

// ValkeyStore keeps links in one Valkey hash keyed by source id.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore constructs a store backed by Valkey.
func NewValkeyStore(client valkey.Client, prefix string) *ValkeyStore {
	if prefix == "" {
		prefix = "faqsync"
	}
	return &ValkeyStore{client: client, prefix: prefix}
}

// List returns every link ordered by source id.
func (s *ValkeyStore) List(ctx context.Context) ([]faq.Link, error) {
	entries, err := s.client.Do(ctx, s.client.B().Hgetall().Key(s.linksKey()).Build()).AsStrMap()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.CodeIO, "read mapping links", err)
	}
	out := make([]faq.Link, 0, len(entries))
	for field, payload := range entries {
		var link faq.Link
		if err := json.Unmarshal([]byte(payload), &link); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeDecode, fmt.Sprintf("decode mapping link %s", field), err)
		}
		out = append(out, link)
	}
	sortBySource(out)
	return out, nil
}

// Save upserts links with a single HSET.
func (s *ValkeyStore) Save(ctx context.Context, links ...faq.Link) error {
	cmd := s.client.B().Hset().Key(s.linksKey()).FieldValue()
	fields := 0
	for _, link := range links {
		if link.SourceID == "" {
			continue
		}
		payload, err := json.Marshal(link)
		if err != nil {
			return err
		}
		cmd = cmd.FieldValue(link.SourceID, string(payload))
		fields++
	}
	if fields == 0 {
		return nil
	}
	if err := s.client.Do(ctx, cmd.Build()).Error(); err != nil {
		return apperrors.Wrap(apperrors.CodeIO, "write mapping links", err)
	}
	return nil
}

func (s *ValkeyStore) linksKey() string {
	return fmt.Sprintf("%s:links", s.prefix)
}
