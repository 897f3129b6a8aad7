package restapi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/flowgate/flowgate/integration"
	"github.com/flowgate/flowgate/jsonutil"
)

// Extension keys understood by API Gateway when importing an OpenAPI
// document.
const (
	extIntegration = "x-amazon-apigateway-integration"
	extAnyMethod   = "x-amazon-apigateway-any-method"
)

// OpenAPI exports the composed API as an OpenAPI 3 document. Every bound
// method carries an x-amazon-apigateway-integration extension; the
// catch-all is exported under x-amazon-apigateway-any-method. The built-in
// Empty and Error body models are declared under components.
func (a *API) OpenAPI() (*openapi3.T, error) {
	doc := &openapi3.T{
		OpenAPI: "3.0.1",
		Info: &openapi3.Info{
			Title:   a.name,
			Version: "1.0",
		},
		Paths: openapi3.NewPaths(),
		Components: &openapi3.Components{
			Schemas: openapi3.Schemas{
				ModelEmpty: openapi3.NewSchemaRef("", openapi3.NewObjectSchema()),
				ModelError: openapi3.NewSchemaRef("", openapi3.NewObjectSchema().WithProperty("message", openapi3.NewStringSchema())),
			},
		},
	}
	doc.Components.Schemas[ModelEmpty].Value.Title = "Empty Schema"
	doc.Components.Schemas[ModelError].Value.Title = "Error Schema"

	for _, method := range a.methods {
		op, err := operationFor(method)
		if err != nil {
			return nil, err
		}

		item := doc.Paths.Value(method.Path)
		if item == nil {
			item = &openapi3.PathItem{}
			doc.Paths.Set(method.Path, item)
		}

		if method.HTTPMethod == MethodAny {
			if item.Extensions == nil {
				item.Extensions = make(map[string]any)
			}
			item.Extensions[extAnyMethod] = op
			continue
		}
		item.SetOperation(method.HTTPMethod, op)
	}

	return doc, nil
}

// OpenAPIJSON serialises the exported document.
func (a *API) OpenAPIJSON() ([]byte, error) {
	doc, err := a.OpenAPI()
	if err != nil {
		return nil, err
	}
	data, err := jsonutil.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("serialize openapi document: %w", err)
	}
	return data, nil
}

func operationFor(method BoundMethod) (*openapi3.Operation, error) {
	var responseOpts []openapi3.NewResponsesOption
	for _, mr := range method.Responses {
		status, err := strconv.Atoi(mr.StatusCode)
		if err != nil {
			return nil, fmt.Errorf("method %s %s: bad status code %q", method.HTTPMethod, method.Path, mr.StatusCode)
		}
		response := openapi3.NewResponse().
			WithDescription(fmt.Sprintf("%s response", mr.StatusCode)).
			WithJSONSchemaRef(openapi3.NewSchemaRef("#/components/schemas/"+mr.Model, nil))
		responseOpts = append(responseOpts, openapi3.WithStatus(status, &openapi3.ResponseRef{Value: response}))
	}

	return &openapi3.Operation{
		Responses: openapi3.NewResponses(responseOpts...),
		Extensions: map[string]any{
			extIntegration: integrationExtension(method.Config),
		},
	}, nil
}

// integrationExtension renders the finalized integration configuration in
// the shape API Gateway imports: an aws-typed integration with request
// templates and responses keyed by selection pattern, the success rule
// under "default".
func integrationExtension(cfg integration.Config) map[string]any {
	ext := map[string]any{
		"type":       "aws",
		"uri":        cfg.URI,
		"httpMethod": cfg.IntegrationHTTPMethod,
	}
	if cfg.CredentialsRole != "" {
		ext["credentials"] = cfg.CredentialsRole
	}
	if cfg.PassthroughBehavior != "" {
		ext["passthroughBehavior"] = strings.ToLower(cfg.PassthroughBehavior)
	}
	if len(cfg.RequestTemplates) > 0 {
		ext["requestTemplates"] = cfg.RequestTemplates
	}

	if len(cfg.IntegrationResponses) > 0 {
		responses := make(map[string]any, len(cfg.IntegrationResponses))
		for _, rule := range cfg.IntegrationResponses {
			key := rule.SelectionPattern
			if key == "" {
				key = "default"
			}
			responses[key] = map[string]any{
				"statusCode":        rule.StatusCode,
				"responseTemplates": rule.Templates,
			}
		}
		ext["responses"] = responses
	}
	return ext
}
