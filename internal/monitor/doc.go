// Package monitor is the interactive controller view of a running
// autoconnect service.
//
// The model polls the service's status region, renders the published
// results and log, and writes Stop and SetIP commands back through the
// same region. It talks to the service only through a Source, which the
// ipc.Client satisfies.
package monitor
