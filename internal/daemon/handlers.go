package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/virshle/virshle/internal/federation"
	"github.com/virshle/virshle/internal/registry"
	"github.com/virshle/virshle/internal/vm"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func readJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// selectorRequest is the {id|uuid|name} shape every selector-taking route
// accepts; exactly one must be supplied (spec.md §4.8).
type selectorRequest struct {
	Id   int64  `json:"id,omitempty"`
	Uuid string `json:"uuid,omitempty"`
	Name string `json:"name,omitempty"`
}

func (r selectorRequest) toSelector() vm.Selector {
	return vm.Selector{Id: r.Id, Uuid: r.Uuid, Name: r.Name}
}

func (s *Server) handleNodeInfo(w http.ResponseWriter, r *http.Request) {
	info := federation.LocalNodeInfo()
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleTemplateList(w http.ResponseWriter, r *http.Request) {
	var templates []any
	if s.vcfg.Template != nil {
		for _, t := range s.vcfg.Template.Vm {
			templates = append(templates, t)
		}
	}
	writeJSON(w, http.StatusOK, templates)
}

type canReclaimRequest struct {
	TemplateName string `json:"template_name"`
}

// handleTemplateCanReclaim reports whether no live VM currently references
// templateName, meaning its cached template disks could be safely removed.
func (s *Server) handleTemplateCanReclaim(w http.ResponseWriter, r *http.Request) {
	var req canReclaimRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rows, err := s.db.ListVm()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	for _, row := range rows {
		if strings.HasPrefix(row.Name, req.TemplateName) {
			writeJSON(w, http.StatusOK, false)
			return
		}
	}
	writeJSON(w, http.StatusOK, true)
}

func (s *Server) handleVmList(w http.ResponseWriter, r *http.Request) {
	vms, err := s.listVms(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, vms)
}

type vmListFilter struct {
	Name  string `json:"name,omitempty"`
	State string `json:"state,omitempty"`
	Owner string `json:"owner,omitempty"`
}

func (s *Server) handleVmListFiltered(w http.ResponseWriter, r *http.Request) {
	var filter vmListFilter
	if err := readJSON(r, &filter); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	vms, err := s.listVms(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := vms[:0]
	for _, v := range vms {
		if filter.Name != "" && v.Name != filter.Name {
			continue
		}
		if filter.State != "" && v.State.String() != strings.ToLower(filter.State) {
			continue
		}
		if filter.Owner != "" && v.AccountUuid != filter.Owner {
			continue
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listVms(ctx context.Context) ([]vm.Vm, error) {
	rows, err := s.db.ListVm()
	if err != nil {
		return nil, err
	}
	out := make([]vm.Vm, 0, len(rows))
	for _, row := range rows {
		v, err := vm.ParseDefinition(row.Definition)
		if err != nil {
			continue
		}
		v.Id = row.ID
		info, err := s.mgr.GetInfo(ctx, vm.Selector{Id: row.ID})
		if err == nil {
			v.State = info.State
		}
		if owner, err := s.db.AccountUuidForVm(row.ID); err == nil && owner != "" {
			v.AccountUuid = owner
		}
		out = append(out, *v)
	}
	return out, nil
}

type createVmRequest struct {
	TemplateName string            `json:"template_name"`
	UserData     map[string]string `json:"user_data,omitempty"`
	AccountUuid  string            `json:"account_uuid,omitempty"`
}

func (s *Server) handleVmCreate(w http.ResponseWriter, r *http.Request) {
	var req createVmRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	tmpl, err := s.vcfg.GetTemplate(req.TemplateName)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	v, err := s.mgr.Create(r.Context(), tmpl)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	if req.AccountUuid != "" {
		if err := s.linkAccount(req.AccountUuid, v.Id); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		v.AccountUuid = req.AccountUuid
	}

	writeJSON(w, http.StatusOK, v)
}

// linkAccount get-or-creates the account row named by uuid and links it to
// vmID, giving `vm create --account UUID` a reachable path to the
// account/account_vm tables the owner filter (spec.md §4.7/§6) reads from.
func (s *Server) linkAccount(uuid string, vmID int64) error {
	acc, err := s.db.GetAccountByUuid(uuid)
	if err != nil {
		if err != registry.ErrNotFound {
			return err
		}
		id, err := s.db.InsertAccount(uuid)
		if err != nil {
			return err
		}
		acc = &registry.AccountRow{ID: id, Uuid: uuid}
	}
	return s.db.LinkAccountVm(acc.ID, vmID)
}

type startVmRequest struct {
	selectorRequest
	UserData map[string]string `json:"user_data,omitempty"`
}

func (s *Server) handleVmStart(w http.ResponseWriter, r *http.Request) {
	var req startVmRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	userData := make(map[string][]byte, len(req.UserData))
	for name, contents := range req.UserData {
		userData[name] = []byte(contents)
	}

	v, err := s.mgr.Start(r.Context(), req.toSelector(), userData)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleVmStop(w http.ResponseWriter, r *http.Request) {
	var req selectorRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	v, err := s.mgr.Shutdown(r.Context(), req.toSelector())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleVmInfo(w http.ResponseWriter, r *http.Request) {
	var req selectorRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	v, err := s.mgr.GetInfo(r.Context(), req.toSelector())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleVmDelete(w http.ResponseWriter, r *http.Request) {
	var req selectorRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	row, err := s.db.GetVmByName(req.Name)
	if err != nil && req.Uuid != "" {
		row, err = s.db.GetVmByUuid(req.Uuid)
	}
	if err != nil && req.Id != 0 {
		row, err = s.db.GetVmByID(req.Id)
	}
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	if err := s.mgr.Delete(r.Context(), req.toSelector()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	v, _ := vm.ParseDefinition(row.Definition)
	writeJSON(w, http.StatusOK, v)
}
