package provider

import "strings"

type Registry struct {
	gateways map[int32]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	items := make(map[int32]Gateway, len(gateways))
	for _, g := range gateways {
		items[g.Code()] = g
	}
	return &Registry{gateways: items}
}

func (r *Registry) Get(code int32) (Gateway, error) {
	gateway, ok := r.gateways[code]
	if !ok {
		return nil, ErrGatewayNotSupported
	}
	return gateway, nil
}

func ParseGatewayCode(raw string) (int32, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "daraja", "mpesa", "1":
		return GatewayDaraja, nil
	case "sandbox", "demo", "2":
		return GatewaySandbox, nil
	default:
		return 0, ErrGatewayNotSupported
	}
}
