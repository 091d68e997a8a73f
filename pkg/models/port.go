package models

// Output port names. An edge without a source_port leaves through PortDefault.
const (
	PortDefault   = "default"
	PortTrue      = "true"
	PortFalse     = "false"
	PortIteration = "iteration"
	PortComplete  = "complete"
	PortError     = "error"
)

// RequiredPorts returns the ports that must be wired for a node type.
func RequiredPorts(nodeType NodeType) []string {
	switch nodeType {
	case NodeTypeCondition:
		return []string{PortTrue, PortFalse}
	case NodeTypeLoop:
		return []string{PortIteration, PortComplete}
	default:
		return nil
	}
}

// AllowedPorts returns every port a node of the given type may emit.
func AllowedPorts(node *Node) []string {
	switch node.Type {
	case NodeTypeCondition:
		return []string{PortTrue, PortFalse, PortError}
	case NodeTypeLoop:
		return []string{PortIteration, PortComplete, PortError}
	case NodeTypeFlow:
		if cfg, ok := node.Config.(*FlowConfig); ok && cfg.FlowType == FlowTypeStop {
			return nil
		}

		return []string{PortDefault}
	default:
		return []string{PortDefault, PortError}
	}
}
