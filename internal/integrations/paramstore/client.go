package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ssmAPI is the subset of *ssm.Client used here.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	GetParametersByPath(ctx context.Context, in *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
}

// Getter reads a single decrypted parameter. The OpenAI client depends on
// this rather than on *Client.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// PathReader reads every parameter under a path.
type PathReader interface {
	GetParametersByPath(ctx context.Context, path string) (map[string]string, error)
}

type Client struct {
	api ssmAPI
}

func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api}, nil
}

func (c *Client) GetParameter(ctx context.Context, name string) (string, error) {
	if c.api == nil {
		return "", errors.New("paramstore: client not initialized")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", errors.New("paramstore: parameter missing value")
	}
	return *out.Parameter.Value, nil
}

// GetParametersByPath returns every parameter below path keyed by its name
// relative to path, e.g. "/atlas/config/model" under "/atlas" is
// "config/model". Pages are followed until exhausted.
func (c *Client) GetParametersByPath(ctx context.Context, path string) (map[string]string, error) {
	if c.api == nil {
		return nil, errors.New("paramstore: client not initialized")
	}
	path = strings.TrimRight(strings.TrimSpace(path), "/")
	if path == "" {
		return nil, errors.New("paramstore: path is required")
	}

	params := make(map[string]string)
	var next *string
	for {
		out, err := c.api.GetParametersByPath(ctx, &ssm.GetParametersByPathInput{
			Path:           aws.String(path),
			Recursive:      aws.Bool(true),
			WithDecryption: aws.Bool(true),
			NextToken:      next,
		})
		if err != nil {
			return nil, fmt.Errorf("paramstore: get parameters by path %q: %w", path, err)
		}
		if out == nil {
			break
		}
		for _, p := range out.Parameters {
			if p.Name == nil || p.Value == nil {
				continue
			}
			key := strings.TrimPrefix(strings.TrimPrefix(*p.Name, path), "/")
			params[key] = *p.Value
		}
		if out.NextToken == nil || *out.NextToken == "" {
			break
		}
		next = out.NextToken
	}
	return params, nil
}
