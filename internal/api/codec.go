package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/signalsfoundry/carecascade-simulator/core"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// decodeScenario converts a Struct request into a validated scenario
// configuration and the disease list it selects.
func decodeScenario(req *structpb.Struct) (core.ScenarioConfig, []string, error) {
	if req == nil {
		req = &structpb.Struct{}
	}
	raw, err := protojson.Marshal(req)
	if err != nil {
		return core.ScenarioConfig{}, nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	file, err := core.LoadScenario(bytes.NewReader(raw), "json")
	if err != nil {
		return core.ScenarioConfig{}, nil, err
	}
	cfg, err := file.Config()
	if err != nil {
		return core.ScenarioConfig{}, nil, err
	}
	return cfg, file.DiseaseList(), nil
}

// EncodeScenario converts a scenario document into a request payload.
func EncodeScenario(f *core.ScenarioFile) (*structpb.Struct, error) {
	return toStruct(f)
}

// Decode unmarshals a response payload into out.
func Decode(s *structpb.Struct, out any) error {
	raw, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func encode(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}
