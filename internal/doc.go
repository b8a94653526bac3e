// Package internal holds crypto-random primitives shared by the authflow
// stores and flows: one-time numeric codes, flow-token secrets, and
// grouped recovery codes. Nothing here touches redis or the network.
package internal
