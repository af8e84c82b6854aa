package api

import "github.com/bargehq/barge/internal/shell/api/openapi"

// newSpecGenerator builds the OpenAPI document for the status surface.
// Schemas are reflected from the response DTO types once; the generated
// document is cached and served from memory.
func newSpecGenerator() *openapi.Generator {
	g := openapi.NewGenerator(
		openapi.WithTitle("Barge API"),
		openapi.WithVersion("1.0.0"),
		openapi.WithDescription("Read-only status API for barge stacks"),
	)

	g.RegisterSchema(openapi.SchemaInfo{Name: "Health", Model: HealthResponse{}})
	g.RegisterSchema(openapi.SchemaInfo{Name: "Ready", Model: ReadyResponse{}})
	g.RegisterSchema(openapi.SchemaInfo{Name: "StackList", Model: ListStacksResponse{}})
	g.RegisterSchema(openapi.SchemaInfo{Name: "StackDetail", Model: StackDetailResponse{}})
	g.RegisterSchema(openapi.SchemaInfo{Name: "ServiceList", Model: ListServicesResponse{}})
	g.RegisterSchema(openapi.SchemaInfo{Name: "EventList", Model: ListEventsResponse{}})
	g.RegisterSchema(openapi.SchemaInfo{Name: "Logs", Model: LogsResponse{}})

	g.RegisterEndpoint(openapi.Endpoint{
		Path:        "/health",
		OperationID: "getHealth",
		Summary:     "Liveness check",
		Tag:         "System",
		Response:    "Health",
	})
	g.RegisterEndpoint(openapi.Endpoint{
		Path:        "/ready",
		OperationID: "getReady",
		Summary:     "Readiness check (store and engine)",
		Tag:         "System",
		Response:    "Ready",
	})
	g.RegisterEndpoint(openapi.Endpoint{
		Path:        "/api/v1/stacks",
		OperationID: "listStacks",
		Summary:     "List stacks",
		Tag:         "Stacks",
		QueryParams: []openapi.Param{
			{Name: "limit", Type: "integer", Default: 100},
			{Name: "offset", Type: "integer", Default: 0},
		},
		Response: "StackList",
	})
	g.RegisterEndpoint(openapi.Endpoint{
		Path:        "/api/v1/stacks/{name}",
		OperationID: "getStack",
		Summary:     "Get a stack with live service states",
		Tag:         "Stacks",
		PathParams:  []string{"name"},
		Response:    "StackDetail",
	})
	g.RegisterEndpoint(openapi.Endpoint{
		Path:        "/api/v1/stacks/{name}/services",
		OperationID: "listStackServices",
		Summary:     "List service records of a stack",
		Tag:         "Stacks",
		PathParams:  []string{"name"},
		Response:    "ServiceList",
	})
	g.RegisterEndpoint(openapi.Endpoint{
		Path:        "/api/v1/stacks/{name}/events",
		OperationID: "listStackEvents",
		Summary:     "List recorded lifecycle events of a stack",
		Tag:         "Stacks",
		PathParams:  []string{"name"},
		QueryParams: []openapi.Param{
			{Name: "type", Type: "string", Default: nil},
			{Name: "limit", Type: "integer", Default: 50},
		},
		Response: "EventList",
	})
	g.RegisterEndpoint(openapi.Endpoint{
		Path:        "/api/v1/stacks/{name}/logs",
		OperationID: "getStackLogs",
		Summary:     "Read recent container logs of a stack",
		Tag:         "Stacks",
		PathParams:  []string{"name"},
		QueryParams: []openapi.Param{
			{Name: "service", Type: "string", Default: nil},
			{Name: "tail", Type: "integer", Default: 100},
			{Name: "since", Type: "string", Default: nil},
		},
		Response: "Logs",
	})

	return g
}
