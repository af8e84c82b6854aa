package plan

import (
	"github.com/bargehq/barge/internal/core/domain"
)

// =============================================================================
// Port Conversion Functions
// =============================================================================

// ConvertPorts converts planned port bindings to domain port mappings for
// status reporting. Default protocol is "tcp" if empty.
//
// Example:
//
//	ports := []PortPlan{{ContainerPort: 80, HostPort: 8888, Protocol: ""}}
//	mappings := ConvertPorts(ports)
//	// Result: []domain.PortMapping{{ContainerPort: 80, HostPort: 8888, Protocol: "tcp"}}
func ConvertPorts(ports []PortPlan) []domain.PortMapping {
	if len(ports) == 0 {
		return []domain.PortMapping{}
	}

	result := make([]domain.PortMapping, 0, len(ports))
	for _, p := range ports {
		proto := p.Protocol
		if proto == "" {
			proto = "tcp"
		}
		result = append(result, domain.PortMapping{
			ContainerPort: p.ContainerPort,
			HostPort:      p.HostPort,
			Protocol:      proto,
		})
	}
	return result
}
