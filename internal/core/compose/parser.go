package compose

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Parser Functions
// =============================================================================

// Parse parses a topology file (Compose YAML) into a Topology.
// This is a pure function - no I/O, no side effects.
// Input: raw YAML content and the stack name used for interpolation context
// Output: Topology struct or error
func Parse(yamlContent, projectName string) (*Topology, error) {
	return ParseWithEnv(yamlContent, projectName, nil)
}

// ParseWithEnv parses a topology file, interpolating ${VAR} and
// ${VAR:-default} placeholders from the provided environment. The
// environment is typically the host environment layered with the project
// env file; the caller owns reading those.
func ParseWithEnv(yamlContent, projectName string, env map[string]string) (*Topology, error) {
	if strings.TrimSpace(yamlContent) == "" {
		return nil, ErrEmptyInput
	}
	if projectName == "" {
		projectName = "barge"
	}

	project, err := loadProject(yamlContent, projectName, env)
	if err != nil {
		return nil, err
	}

	if err := checkUnsupportedFeatures(project); err != nil {
		return nil, err
	}

	if len(project.Services) == 0 {
		return nil, ErrNoServices
	}

	topo := &Topology{
		Name:     projectName,
		Services: make([]Service, 0, len(project.Services)),
		Networks: make([]Network, 0, len(project.Networks)),
		Volumes:  make([]Volume, 0, len(project.Volumes)),
	}

	for _, svc := range project.Services {
		converted, err := convertService(svc)
		if err != nil {
			return nil, err
		}
		topo.Services = append(topo.Services, converted)
	}

	// Deterministic service order regardless of map iteration.
	sort.Slice(topo.Services, func(i, j int) bool {
		return topo.Services[i].Name < topo.Services[j].Name
	})

	for name, net := range project.Networks {
		topo.Networks = append(topo.Networks, convertNetwork(name, net))
	}
	sort.Slice(topo.Networks, func(i, j int) bool {
		return topo.Networks[i].Name < topo.Networks[j].Name
	})

	for name, vol := range project.Volumes {
		topo.Volumes = append(topo.Volumes, convertVolume(name, vol))
	}
	sort.Slice(topo.Volumes, func(i, j int) bool {
		return topo.Volumes[i].Name < topo.Volumes[j].Name
	})

	if err := Validate(topo); err != nil {
		return nil, err
	}

	return topo, nil
}

// loadProject loads a topology using compose-go.
func loadProject(yamlContent, projectName string, env map[string]string) (*types.Project, error) {
	// Parse YAML into a map first for early, readable syntax errors.
	var dict map[string]interface{}
	if err := yaml.Unmarshal([]byte(yamlContent), &dict); err != nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}
	if dict == nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}

	details := types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: []byte(yamlContent),
				Config:  dict,
			},
		},
	}
	if len(env) > 0 {
		details.Environment = types.Mapping(env)
	}

	project, err := loader.LoadWithContext(context.Background(), details, func(opts *loader.Options) {
		opts.SetProjectName(projectName, false)
		opts.SkipValidation = false
		opts.SkipInterpolation = false
		// Don't resolve paths since we're in-memory
		opts.SkipNormalization = true
		opts.SkipExtends = true // Don't try to load external files
	})
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "dependency cycle detected") {
			return nil, NewParseError("", "circular dependency detected", ErrCircularDependency)
		}
		if strings.Contains(errStr, "image") && strings.Contains(errStr, "build") {
			return nil, NewParseError("", "service must have image or build", ErrServiceNoImage)
		}
		return nil, NewParseError("", errStr, ErrInvalidYAML)
	}

	return project, nil
}

// checkUnsupportedFeatures checks for features barge does not run.
func checkUnsupportedFeatures(project *types.Project) error {
	if len(project.Secrets) > 0 {
		return NewParseError("secrets", "secrets are not supported", ErrUnsupportedFeature)
	}
	if len(project.Configs) > 0 {
		return NewParseError("configs", "configs are not supported", ErrUnsupportedFeature)
	}
	for _, svc := range project.Services {
		if svc.Extends != nil && svc.Extends.File != "" {
			return NewParseError("services."+svc.Name+".extends", "extends is not supported", ErrUnsupportedFeature)
		}
	}
	return nil
}

// convertService converts a compose-go service to our Service type.
func convertService(svc types.ServiceConfig) (Service, error) {
	service := Service{
		Name:        svc.Name,
		Image:       svc.Image,
		Command:     svc.Command,
		Entrypoint:  svc.Entrypoint,
		Environment: make(map[string]string),
		Labels:      make(map[string]string),
		Networks:    make([]string, 0),
		DependsOn:   make([]Dependency, 0),
	}

	// Build config
	if svc.Build != nil {
		service.Build = &BuildConfig{
			Context:    svc.Build.Context,
			Dockerfile: svc.Build.Dockerfile,
		}
		if len(svc.Build.Args) > 0 {
			service.Build.Args = make(map[string]string, len(svc.Build.Args))
			for k, v := range svc.Build.Args {
				if v != nil {
					service.Build.Args[k] = *v
				}
			}
		}
	}

	if service.Image == "" && service.Build == nil {
		return Service{}, NewParseError("services."+svc.Name, "service must have image or build", ErrServiceNoImage)
	}

	// Ports
	for _, p := range svc.Ports {
		var published uint32
		if p.Published != "" {
			pub, err := strconv.ParseUint(p.Published, 10, 32)
			if err == nil {
				published = uint32(pub)
			}
		}
		service.Ports = append(service.Ports, Port{
			Target:    p.Target,
			Published: published,
			Protocol:  p.Protocol,
			HostIP:    p.HostIP,
		})
	}

	// Environment
	for k, v := range svc.Environment {
		if v != nil {
			service.Environment[k] = *v
		}
	}

	// Env files, order preserved (later files win during merge)
	for _, ef := range svc.EnvFiles {
		service.EnvFiles = append(service.EnvFiles, ef.Path)
	}

	// Volumes
	for _, v := range svc.Volumes {
		mount := VolumeMount{
			Source:   v.Source,
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
		}
		switch v.Type {
		case "bind":
			mount.Type = VolumeMountTypeBind
		case "volume":
			mount.Type = VolumeMountTypeVolume
		case "tmpfs":
			mount.Type = VolumeMountTypeTmpfs
		default:
			// Infer type from source
			if strings.HasPrefix(v.Source, "./") || strings.HasPrefix(v.Source, "/") || strings.HasPrefix(v.Source, "~") {
				mount.Type = VolumeMountTypeBind
			} else {
				mount.Type = VolumeMountTypeVolume
			}
		}
		service.Volumes = append(service.Volumes, mount)
	}

	// Networks
	for net := range svc.Networks {
		service.Networks = append(service.Networks, net)
	}
	sort.Strings(service.Networks)

	// DependsOn with per-edge conditions
	for dep, cfg := range svc.DependsOn {
		cond, err := convertCondition(cfg.Condition)
		if err != nil {
			return Service{}, NewParseError(
				fmt.Sprintf("services.%s.depends_on.%s", svc.Name, dep),
				fmt.Sprintf("unknown condition %q", cfg.Condition),
				ErrInvalidCondition,
			)
		}
		service.DependsOn = append(service.DependsOn, Dependency{Service: dep, Condition: cond})
	}
	sort.Slice(service.DependsOn, func(i, j int) bool {
		return service.DependsOn[i].Service < service.DependsOn[j].Service
	})

	// Restart policy
	if err := validateRestart(svc.Restart); err != nil {
		return Service{}, NewParseError("services."+svc.Name+".restart",
			fmt.Sprintf("unknown restart policy %q", svc.Restart), err)
	}
	service.Restart = RestartPolicy(svc.Restart)

	// Labels
	for k, v := range svc.Labels {
		service.Labels[k] = v
	}

	// HealthCheck
	if svc.HealthCheck != nil {
		service.HealthCheck = &HealthCheck{
			Test:    svc.HealthCheck.Test,
			Disable: svc.HealthCheck.Disable,
		}
		if svc.HealthCheck.Retries != nil {
			service.HealthCheck.Retries = int(*svc.HealthCheck.Retries)
		}
		if svc.HealthCheck.Interval != nil {
			service.HealthCheck.Interval = svc.HealthCheck.Interval.String()
		}
		if svc.HealthCheck.Timeout != nil {
			service.HealthCheck.Timeout = svc.HealthCheck.Timeout.String()
		}
		if svc.HealthCheck.StartPeriod != nil {
			service.HealthCheck.StartPeriod = svc.HealthCheck.StartPeriod.String()
		}
		if len(service.HealthCheck.Test) > 0 && service.HealthCheck.Test[0] == "NONE" {
			service.HealthCheck.Disable = true
		}
	}

	// Resources
	// Note: compose-go's NanoCPUs is misnamed - it's actually the CPU count as float32
	if svc.Deploy != nil && svc.Deploy.Resources.Limits != nil {
		limits := svc.Deploy.Resources.Limits
		service.Resources.CPULimit = float64(limits.NanoCPUs)
		service.Resources.MemoryLimit = int64(limits.MemoryBytes)
	}
	if svc.Deploy != nil && svc.Deploy.Resources.Reservations != nil {
		reservations := svc.Deploy.Resources.Reservations
		service.Resources.CPUReservation = float64(reservations.NanoCPUs)
		service.Resources.MemoryReservation = int64(reservations.MemoryBytes)
	}

	return service, nil
}

// convertCondition maps a compose condition string to a StartCondition.
// Short-form depends_on lists carry no condition and default to started.
func convertCondition(c string) (StartCondition, error) {
	switch c {
	case "", string(ConditionStarted):
		return ConditionStarted, nil
	case string(ConditionHealthy):
		return ConditionHealthy, nil
	case string(ConditionCompleted):
		return ConditionCompleted, nil
	default:
		return "", ErrInvalidCondition
	}
}

// validateRestart accepts the engine restart policies. The on-failure
// policy may carry a retry ceiling ("on-failure:5").
func validateRestart(r string) error {
	switch {
	case r == "", r == string(RestartNo), r == string(RestartAlways), r == string(RestartUnlessStopped):
		return nil
	case strings.HasPrefix(r, string(RestartOnFailure)):
		return nil
	default:
		return ErrInvalidRestart
	}
}

// convertNetwork converts a compose-go network to our Network type.
func convertNetwork(name string, net types.NetworkConfig) Network {
	return Network{
		Name:       name,
		Driver:     net.Driver,
		External:   bool(net.External),
		Internal:   net.Internal,
		Attachable: net.Attachable,
		Labels:     net.Labels,
	}
}

// convertVolume converts a compose-go volume to our Volume type.
func convertVolume(name string, vol types.VolumeConfig) Volume {
	return Volume{
		Name:     name,
		Driver:   vol.Driver,
		External: bool(vol.External),
		Labels:   vol.Labels,
	}
}

// =============================================================================
// Validation
// =============================================================================

// Validate performs structural validation on a parsed topology: dependency
// edges must resolve, health-gated edges must be gatable, host ports must
// be unique, and the dependency graph must be acyclic.
func Validate(t *Topology) error {
	if len(t.Services) == 0 {
		return ErrNoServices
	}
	if err := validateDependencies(t.Services); err != nil {
		return err
	}
	if err := detectCircularDependencies(t.Services); err != nil {
		return err
	}
	return validatePorts(t.Services)
}

// validateDependencies checks every depends_on edge: the target must be a
// declared service, must not be the service itself, and a service_healthy
// condition requires the target to declare an enabled healthcheck. The
// last rule is deliberate: barge never invents gating for services whose
// topology declares no probe.
func validateDependencies(services []Service) error {
	byName := make(map[string]*Service, len(services))
	for i := range services {
		byName[services[i].Name] = &services[i]
	}

	for _, svc := range services {
		for _, dep := range svc.DependsOn {
			field := fmt.Sprintf("services.%s.depends_on.%s", svc.Name, dep.Service)
			if dep.Service == svc.Name {
				return NewParseError(field, "service cannot depend on itself", ErrSelfDependency)
			}
			target, ok := byName[dep.Service]
			if !ok {
				return NewParseError(field,
					fmt.Sprintf("service %q is not declared", dep.Service),
					ErrUnknownDependency)
			}
			if dep.Condition == ConditionHealthy && !target.HasHealthCheck() {
				return NewParseError(field,
					fmt.Sprintf("service %q declares no healthcheck", dep.Service),
					ErrUngatableDependency)
			}
		}
	}
	return nil
}

// detectCircularDependencies detects cycles in service dependencies.
func detectCircularDependencies(services []Service) error {
	deps := make(map[string][]string)
	for _, svc := range services {
		for _, dep := range svc.DependsOn {
			deps[svc.Name] = append(deps[svc.Name], dep.Service)
		}
	}

	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	var hasCycle func(node string) bool
	hasCycle = func(node string) bool {
		visited[node] = true
		recStack[node] = true

		for _, dep := range deps[node] {
			if dep == node {
				return true
			}
			if !visited[dep] {
				if hasCycle(dep) {
					return true
				}
			} else if recStack[dep] {
				return true
			}
		}

		recStack[node] = false
		return false
	}

	for _, svc := range services {
		if !visited[svc.Name] {
			if hasCycle(svc.Name) {
				return ErrCircularDependency
			}
		}
	}

	return nil
}

// validatePorts validates port ranges and rejects host ports published by
// more than one service. Host ports are exclusively bound; a collision at
// parse time would otherwise only surface when the second container fails
// to start.
func validatePorts(services []Service) error {
	published := make(map[string]string) // "ip:port/proto" -> service
	for _, svc := range services {
		for i, port := range svc.Ports {
			field := fmt.Sprintf("services.%s.ports[%d]", svc.Name, i)
			if port.Target == 0 {
				return NewParseError(field, "target port cannot be 0", ErrServiceInvalidPort)
			}
			if port.Target > 65535 {
				return NewParseError(field, "target port must be <= 65535", ErrServiceInvalidPort)
			}
			if port.Published > 65535 {
				return NewParseError(field, "published port must be <= 65535", ErrServiceInvalidPort)
			}
			if port.Published == 0 {
				continue
			}
			proto := port.Protocol
			if proto == "" {
				proto = "tcp"
			}
			key := fmt.Sprintf("%s:%d/%s", port.HostIP, port.Published, proto)
			if owner, taken := published[key]; taken && owner != svc.Name {
				return NewParseError(field,
					fmt.Sprintf("host port %d already published by service %q", port.Published, owner),
					ErrDuplicateHostPort)
			}
			published[key] = svc.Name
		}
	}
	return nil
}

// =============================================================================
// Variable Extraction
// =============================================================================

// variablePlaceholderRegex matches ${VAR_NAME} or ${VAR_NAME:-default}
var variablePlaceholderRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-[^}]*)?\}`)

// ExtractVariables extracts environment variable placeholders (${VAR_NAME})
// from raw YAML content, before interpolation. Returns unique variable
// names without the ${} wrapper, in order of first appearance.
func ExtractVariables(yamlContent string) []string {
	seen := make(map[string]bool)
	var vars []string

	matches := variablePlaceholderRegex.FindAllStringSubmatch(yamlContent, -1)
	for _, match := range matches {
		if len(match) >= 2 {
			varName := match[1]
			if !seen[varName] {
				seen[varName] = true
				vars = append(vars, varName)
			}
		}
	}

	return vars
}
