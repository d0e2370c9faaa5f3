package dataquery

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/FreePeak/data-query-server/internal/domain"
)

// ReadDataset implements handler.ResourceHandler. It returns the first
// rows of a known dataset as a serialized QueryResult.
func (s *Service) ReadDataset(ctx context.Context, dataset string) (string, error) {
	if _, ok := s.meta.Dataset(dataset); !ok {
		return "", domain.NewResourceNotFoundError(dataset)
	}

	result, err := s.Query(ctx, "SELECT * FROM "+quoteIdent(dataset)+" LIMIT 10")
	if err != nil {
		return "", err
	}
	return marshal(result)
}

// ReadSchema implements handler.ResourceHandler.
func (s *Service) ReadSchema(ctx context.Context) (string, error) {
	schema, err := s.schemaInfo(ctx)
	if err != nil {
		if domain.IsStoreUnavailable(err) {
			return "", err
		}
		return marshal(map[string]string{"error": err.Error()})
	}
	return marshal(schema)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func marshal(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, "encode resource")
	}
	return string(b), nil
}
