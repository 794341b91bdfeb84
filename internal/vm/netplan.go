package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// guestSSHPort is the guest-side port of the management mapping.
const guestSSHPort = 22

// ForwardingRule maps one host port to one guest port.
type ForwardingRule struct {
	HostPort  int
	GuestPort int
}

func (r ForwardingRule) String() string {
	return fmt.Sprintf("%d:%d", r.HostPort, r.GuestPort)
}

// ForwardPlan is the ordered set of port mappings a VM is launched with:
// the valid extra rules in the order supplied, then the management mapping.
type ForwardPlan struct {
	Rules []ForwardingRule

	// Dropped holds one note per extra rule that failed validation,
	// in input order. Dropping a rule never aborts the plan.
	Dropped []string
}

// ManagementRule returns the management-port mapping, always the last entry.
func (p *ForwardPlan) ManagementRule() ForwardingRule {
	return p.Rules[len(p.Rules)-1]
}

// PlanForwards validates each extra "host:guest" rule and appends the
// management mapping last. The management port must be valid; it is not
// checked for collisions against extra rules, and neither are the extra
// rules against each other.
func PlanForwards(managementPort int, extraRules []string) (*ForwardPlan, error) {
	if !ValidPort(managementPort) {
		return nil, &ValidationError{
			Field:   "ssh_port",
			Message: fmt.Sprintf("%d outside allowed range 23-65535", managementPort),
		}
	}

	plan := &ForwardPlan{}
	for _, raw := range extraRules {
		rule, err := ParseForwardingRule(raw)
		if err != nil {
			plan.Dropped = append(plan.Dropped, fmt.Sprintf("dropping forwarding rule %q: %v", raw, err))
			continue
		}
		plan.Rules = append(plan.Rules, rule)
	}

	plan.Rules = append(plan.Rules, ForwardingRule{HostPort: managementPort, GuestPort: guestSSHPort})
	return plan, nil
}

// ParseForwardingRule parses one "host:guest" pair. Both ports must be
// numeric and within 23-65535.
func ParseForwardingRule(raw string) (ForwardingRule, error) {
	hostStr, guestStr, ok := strings.Cut(raw, ":")
	if !ok {
		return ForwardingRule{}, fmt.Errorf("expected host:guest")
	}

	host, err := strconv.Atoi(hostStr)
	if err != nil {
		return ForwardingRule{}, fmt.Errorf("host port %q is not a number", hostStr)
	}
	if !ValidPort(host) {
		return ForwardingRule{}, fmt.Errorf("host port %d outside allowed range 23-65535", host)
	}

	guest, err := strconv.Atoi(guestStr)
	if err != nil {
		return ForwardingRule{}, fmt.Errorf("guest port %q is not a number", guestStr)
	}
	if !ValidPort(guest) {
		return ForwardingRule{}, fmt.Errorf("guest port %d outside allowed range 23-65535", guest)
	}

	return ForwardingRule{HostPort: host, GuestPort: guest}, nil
}
