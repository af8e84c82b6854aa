package plan

import "fmt"

// =============================================================================
// Resource Naming Functions
// =============================================================================

// NetworkName generates the network name for a stack.
// Pattern: barge_{stack}
//
// Example:
//
//	NetworkName("webapp") // returns "barge_webapp"
func NetworkName(stack string) string {
	return fmt.Sprintf("barge_%s", stack)
}

// VolumeName generates a volume name for a stack.
// Pattern: barge_{stack}_{volumeName}
//
// Example:
//
//	VolumeName("webapp", "postgres_data") // returns "barge_webapp_postgres_data"
func VolumeName(stack, volumeName string) string {
	return fmt.Sprintf("barge_%s_%s", stack, volumeName)
}

// ContainerName generates a container name for a service in a stack.
// Pattern: barge_{stack}_{serviceName}
//
// Example:
//
//	ContainerName("webapp", "db") // returns "barge_webapp_db"
func ContainerName(stack, serviceName string) string {
	return fmt.Sprintf("barge_%s_%s", stack, serviceName)
}

// ImageRef generates the image reference for a service built from source.
// The tag is the first 12 hex characters of the build fingerprint, so two
// builds from identical inputs share an image identity.
// Pattern: barge/{stack}-{serviceName}:{fingerprint[:12]}
//
// Example:
//
//	ImageRef("webapp", "backend", "0a1b2c3d4e5f6789...") // returns "barge/webapp-backend:0a1b2c3d4e5f"
func ImageRef(stack, serviceName, fingerprint string) string {
	tag := fingerprint
	if len(tag) > 12 {
		tag = tag[:12]
	}
	if tag == "" {
		tag = "latest"
	}
	return fmt.Sprintf("barge/%s-%s:%s", stack, serviceName, tag)
}
