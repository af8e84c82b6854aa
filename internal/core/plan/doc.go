// Package plan provides pure functions for stack execution planning.
//
// This package contains the functional core logic for transforming parsed
// topologies into Docker execution plans. All functions are pure (no I/O,
// no side effects); the imperative shell supplies file digests and built
// image tags, and executes the resulting plans via the Docker API.
//
// # Functions
//
//   - Naming: Generate consistent resource names (NetworkName, VolumeName, ContainerName, ImageRef)
//   - Ordering: Group services into start batches (StartBatches, StopOrder)
//   - Fingerprint: Derive deterministic image identities from build inputs (Fingerprint)
//   - Gates: Translate healthchecks into gate specs (BuildGateSpec)
//   - Container: Build container plans from topology services (BuildContainerPlan)
//   - Planner: Assemble whole-stack plans and status paths (BuildStackPlan, DetermineUpPath)
//
// # Usage
//
//	batches := plan.StartBatches(topo.Services)
//	stackPlan, err := plan.BuildStackPlan(topo, params)
package plan
