package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/signalsfoundry/carecascade-simulator/core"
	"github.com/signalsfoundry/carecascade-simulator/internal/logging"
	"github.com/signalsfoundry/carecascade-simulator/kb"
	"github.com/signalsfoundry/carecascade-simulator/model"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "healthsim.v1.SimulationService"

// SimulationServiceServer is the server API of the simulation service. Every
// method exchanges google.protobuf.Struct payloads; requests carry the
// scenario document shape accepted by core.LoadScenario.
type SimulationServiceServer interface {
	RunSimulation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RunBaseline(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CompareScenarios(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RunMultiDisease(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListCatalog(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// SimulationService implements SimulationServiceServer on top of a
// core.Runner.
//
// Semantics:
//   - RunSimulation runs the scenario as given and returns its results.
//   - RunBaseline runs the scenario with every AI intervention switched off.
//   - CompareScenarios runs the scenario and its baseline and returns both
//     plus the incremental comparison (ICER included).
//   - RunMultiDisease runs every disease of the scenario against its own
//     baseline and returns per-disease and aggregate results.
//   - ListCatalog returns the identifiers of every catalog entry.
type SimulationService struct {
	runner *core.Runner
	log    logging.Logger
}

// NewSimulationService binds the service to a runner.
func NewSimulationService(runner *core.Runner, log logging.Logger) *SimulationService {
	if log == nil {
		log = logging.Noop()
	}
	return &SimulationService{runner: runner, log: log}
}

// Register attaches the service to a gRPC server.
func Register(s grpc.ServiceRegistrar, srv SimulationServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// RunSimulation implements SimulationServiceServer.
func (s *SimulationService) RunSimulation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	cfg, _, err := decodeScenario(req)
	if err != nil {
		return nil, ToStatusError(err)
	}

	ctx, span := StartChildSpan(ctx, "api.RunSimulation", cfg.Disease)
	defer span.End()

	res, err := s.runner.RunScenario(ctx, cfg)
	if err != nil {
		return nil, s.fail(ctx, "RunSimulation", err)
	}
	return encode(RunResponse{Result: res})
}

// RunBaseline implements SimulationServiceServer.
func (s *SimulationService) RunBaseline(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	cfg, _, err := decodeScenario(req)
	if err != nil {
		return nil, ToStatusError(err)
	}

	ctx, span := StartChildSpan(ctx, "api.RunBaseline", cfg.Disease)
	defer span.End()

	res, err := s.runner.RunBaseline(ctx, cfg)
	if err != nil {
		return nil, s.fail(ctx, "RunBaseline", err)
	}
	return encode(RunResponse{Result: res})
}

// CompareScenarios implements SimulationServiceServer.
func (s *SimulationService) CompareScenarios(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	cfg, _, err := decodeScenario(req)
	if err != nil {
		return nil, ToStatusError(err)
	}

	ctx, span := StartChildSpan(ctx, "api.CompareScenarios", cfg.Disease,
		attribute.Int("ai.active", len(cfg.AI.Active())))
	defer span.End()

	out, err := s.runner.RunWithBaseline(ctx, cfg)
	if err != nil {
		return nil, s.fail(ctx, "CompareScenarios", err)
	}
	return encode(CompareResponse{
		Intervention: out.Intervention,
		Baseline:     out.Baseline,
		Comparison:   out.Comparison,
	})
}

// RunMultiDisease implements SimulationServiceServer.
func (s *SimulationService) RunMultiDisease(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	cfg, diseases, err := decodeScenario(req)
	if err != nil {
		return nil, ToStatusError(err)
	}

	ctx, span := StartChildSpan(ctx, "api.RunMultiDisease", "",
		attribute.StringSlice("diseases", diseases))
	defer span.End()

	intervention, baseline, err := s.runner.RunMultiCompared(ctx, cfg, diseases)
	if err != nil {
		return nil, s.fail(ctx, "RunMultiDisease", err)
	}
	resp := MultiResponse{
		Diseases:      intervention.Diseases(),
		PerDisease:    intervention.PerDisease,
		Aggregate:     intervention.Aggregate,
		Baseline:      baseline.Aggregate,
		Substitutions: intervention.Substitutions,
		Warnings:      intervention.Warnings,
	}
	if intervention.Aggregate != nil && baseline.Aggregate != nil {
		cmp := core.Compare(intervention.Aggregate, baseline.Aggregate)
		resp.Comparison = &cmp
	}
	return encode(resp)
}

// ListCatalog implements SimulationServiceServer.
func (s *SimulationService) ListCatalog(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	return encode(CatalogFrom(s.runner.KnowledgeBase()))
}

func (s *SimulationService) ensureReady() error {
	if s == nil || s.runner == nil {
		return ToStatusError(errors.New("simulation service is not initialised"))
	}
	return nil
}

func (s *SimulationService) fail(ctx context.Context, op string, err error) error {
	logging.FromContextOr(ctx, s.log).Error(ctx, op+" failed", logging.Err(err))
	return ToStatusError(err)
}

// RunResponse is the payload of RunSimulation and RunBaseline.
type RunResponse struct {
	Result *model.SimulationResults `json:"result"`
}

// CompareResponse is the payload of CompareScenarios.
type CompareResponse struct {
	Intervention *model.SimulationResults `json:"intervention"`
	Baseline     *model.SimulationResults `json:"baseline"`
	Comparison   model.Comparison         `json:"comparison"`
}

// MultiResponse is the payload of RunMultiDisease.
type MultiResponse struct {
	Diseases      []string                            `json:"diseases"`
	PerDisease    map[string]*model.SimulationResults `json:"perDisease"`
	Aggregate     *model.SimulationResults            `json:"aggregate"`
	Baseline      *model.SimulationResults            `json:"baseline,omitempty"`
	Comparison    *model.Comparison                   `json:"comparison,omitempty"`
	Substitutions map[string]string                   `json:"substitutions,omitempty"`
	Warnings      []string                            `json:"warnings,omitempty"`
}

// CatalogEntry names one catalog item.
type CatalogEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CatalogResponse is the payload of ListCatalog.
type CatalogResponse struct {
	Diseases      []CatalogEntry `json:"diseases"`
	HealthSystems []CatalogEntry `json:"healthSystems"`
	Countries     []CatalogEntry `json:"countries"`
	Interventions []CatalogEntry `json:"interventions"`
}

// CatalogFrom lists the entries of a knowledge base in sorted order.
func CatalogFrom(store *kb.KnowledgeBase) CatalogResponse {
	var out CatalogResponse
	if store == nil {
		return out
	}
	for _, d := range store.ListDiseases() {
		out.Diseases = append(out.Diseases, CatalogEntry{ID: d.ID, Name: d.Name})
	}
	for _, h := range store.ListHealthSystems() {
		out.HealthSystems = append(out.HealthSystems, CatalogEntry{ID: h.ID, Name: h.Name})
	}
	for _, c := range store.ListCountries() {
		out.Countries = append(out.Countries, CatalogEntry{ID: c.ID, Name: c.Name})
	}
	for _, iv := range store.ListInterventions() {
		out.Interventions = append(out.Interventions, CatalogEntry{ID: string(iv.ID), Name: iv.Name})
	}
	return out
}

// ServiceDesc describes SimulationService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SimulationServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RunSimulation", Handler: unaryHandler("RunSimulation", SimulationServiceServer.RunSimulation)},
		{MethodName: "RunBaseline", Handler: unaryHandler("RunBaseline", SimulationServiceServer.RunBaseline)},
		{MethodName: "CompareScenarios", Handler: unaryHandler("CompareScenarios", SimulationServiceServer.CompareScenarios)},
		{MethodName: "RunMultiDisease", Handler: unaryHandler("RunMultiDisease", SimulationServiceServer.RunMultiDisease)},
		{MethodName: "ListCatalog", Handler: unaryHandler("ListCatalog", SimulationServiceServer.ListCatalog)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "healthsim/v1/simulation.proto",
}

type unaryMethod func(SimulationServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, call unaryMethod) grpc.MethodHandler {
	fullMethod := fmt.Sprintf("/%s/%s", ServiceName, name)
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SimulationServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(SimulationServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
