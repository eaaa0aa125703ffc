package dhcp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/virshle/virshle/internal/virrors"
)

// Kea talks to a Kea control-agent over plain HTTP (spec.md §6): one POST
// per call with `{command, service, arguments?}`, responses shaped
// `[{result, arguments:{leases:[...]}}]`.
type Kea struct {
	Url  string
	http *http.Client
}

// NewKea builds a Kea client against a control-agent base url.
func NewKea(url string) *Kea {
	return &Kea{Url: url, http: &http.Client{Timeout: 10 * time.Second}}
}

type keaRequest struct {
	Command   string   `json:"command"`
	Service   []string `json:"service,omitempty"`
	Arguments any      `json:"arguments,omitempty"`
}

type keaResponse struct {
	Result    int `json:"result"`
	Arguments struct {
		Leases []KeaLease `json:"leases"`
	} `json:"arguments"`
}

// KeaLease is one entry of a Kea lease4-get-*/lease6-get-* response.
type KeaLease struct {
	IpAddress string `json:"ip-address"`
	Hostname  string `json:"hostname"`
}

func (k *Kea) call(ctx context.Context, command string, service []string, args any) ([]keaResponse, error) {
	body, err := json.Marshal(keaRequest{Command: command, Service: service, Arguments: args})
	if err != nil {
		return nil, virrors.Wrap(err, "couldn't encode kea command", command)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.Url, bytes.NewReader(body))
	if err != nil {
		return nil, virrors.Wrap(err, "couldn't build kea request", "")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := k.http.Do(req)
	if err != nil {
		return nil, virrors.Wrap(err, "kea control-agent request failed", k.Url)
	}
	defer resp.Body.Close()

	var out []keaResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, virrors.Wrap(err, "malformed kea response", "")
	}
	return out, nil
}

// AllLeases runs lease4-get-all against the dhcp4 service.
func (k *Kea) AllLeases(ctx context.Context) ([]KeaLease, error) {
	resps, err := k.call(ctx, "lease4-get-all", []string{"dhcp4"}, nil)
	if err != nil {
		return nil, err
	}
	return firstLeases(resps), nil
}

// LeasesByHostname runs lease4-get-by-hostname for vmName.
func (k *Kea) LeasesByHostname(ctx context.Context, vmName string) ([]KeaLease, error) {
	resps, err := k.call(ctx, "lease4-get-by-hostname", []string{"dhcp4"}, map[string]string{"hostname": vmName})
	if err != nil {
		return nil, err
	}
	return firstLeases(resps), nil
}

// Allocate returns the address of vmName's first existing Kea lease, or ""
// with a nil error when Kea holds none. It never creates a lease, and
// netName is not consulted.
func (k *Kea) Allocate(ctx context.Context, netName, vmName string) (string, error) {
	leases, err := k.LeasesByHostname(ctx, vmName)
	if err != nil {
		return "", err
	}
	if len(leases) == 0 {
		return "", nil
	}
	return leases[0].IpAddress, nil
}

// Release runs lease4-bulk-apply to delete every lease held by vmName.
func (k *Kea) Release(ctx context.Context, vmName string) error {
	leases, err := k.LeasesByHostname(ctx, vmName)
	if err != nil || len(leases) == 0 {
		return err
	}

	deletes := make([]map[string]string, 0, len(leases))
	for _, l := range leases {
		deletes = append(deletes, map[string]string{"ip-address": l.IpAddress})
	}

	_, err = k.call(ctx, "lease4-bulk-apply", []string{"dhcp4"}, map[string]any{"deleted-leases": deletes})
	return err
}

func firstLeases(resps []keaResponse) []KeaLease {
	if len(resps) == 0 {
		return nil
	}
	return resps[0].Arguments.Leases
}
