package cctx

type ContextKey string

var (
	HubID        ContextKey = "eph:hub"
	ConnectionID ContextKey = "eph:conn"
)
