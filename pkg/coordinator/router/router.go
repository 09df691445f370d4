// Package router implements the Request Router: it dispatches each
// authenticated client message to the right handler, consulting the
// Metadata Registry for permissions and either answering directly from
// Registry state, forwarding one control message to the home storage
// server, or replying with a storage-server redirect for data-plane ops.
package router

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/marmos91/dfs/internal/codes"
	"github.com/marmos91/dfs/internal/logger"
	"github.com/marmos91/dfs/internal/metrics"
	"github.com/marmos91/dfs/internal/wire"
	"github.com/marmos91/dfs/pkg/coordinator/exec"
	"github.com/marmos91/dfs/pkg/coordinator/metadata"
	"github.com/marmos91/dfs/pkg/coordinator/searchcache"
	"github.com/marmos91/dfs/pkg/coordinator/session"
	"github.com/marmos91/dfs/pkg/coordinator/ssregistry"
)

// Deps bundles the subsystems a Router dispatches against. Held by value
// in Router so handlers never need to know about the Coordinator that
// wires them together.
type Deps struct {
	Metadata *metadata.Registry
	SS       *ssregistry.Registry
	Sessions *session.Table
	Cache    *searchcache.Cache
	Exec     *exec.Runner
}

// Router dispatches one client Record at a time to the appropriate
// handler.
type Router struct {
	deps Deps
}

// New creates a Router over the given subsystems.
func New(deps Deps) *Router {
	return &Router{deps: deps}
}

// Dispatch handles one request from an authenticated session and returns
// the response record to send back. It never blocks on client I/O beyond
// what an individual op requires (e.g. forwarding to an SS).
func (rt *Router) Dispatch(ctx context.Context, username string, req *wire.Record) *wire.Record {
	start := time.Now()
	resp := rt.dispatch(ctx, username, req)
	metrics.ObserveRequest(req.Type.String(), resp.ErrorCode.String(), time.Since(start))
	return resp
}

func (rt *Router) dispatch(ctx context.Context, username string, req *wire.Record) *wire.Record {
	switch req.Type {
	case wire.Create:
		return rt.handleCreate(ctx, username, req)
	case wire.Delete:
		return rt.handleDelete(ctx, username, req)
	case wire.View:
		return rt.handleView(ctx, username, req)
	case wire.Info:
		return rt.handleInfo(ctx, username, req)
	case wire.Read, wire.Write, wire.Stream, wire.Undo:
		return rt.handleRedirect(username, req)
	case wire.ListUsers:
		return rt.handleListUsers(username, req)
	case wire.AddAccess:
		return rt.handleAddAccess(username, req)
	case wire.RemAccess:
		return rt.handleRemAccess(username, req)
	case wire.RequestAccess:
		return rt.handleRequestAccess(username, req)
	case wire.ViewRequests:
		return rt.handleViewRequests(username, req)
	case wire.RespondRequest:
		return rt.handleRespondRequest(username, req)
	case wire.CreateFolder:
		return rt.handleCreateFolder(ctx, username, req)
	case wire.ViewFolder:
		return rt.handleViewFolder(username, req)
	case wire.Move:
		return rt.handleMove(ctx, username, req)
	case wire.Checkpoint:
		return rt.handleCheckpoint(ctx, username, req)
	case wire.ViewCheckpoint:
		return rt.handleRedirect(username, req)
	case wire.Revert:
		return rt.handleRevert(ctx, username, req)
	case wire.ListCheckpoints:
		return rt.handleListCheckpoints(username, req)
	case wire.Search:
		return rt.handleSearch(username, req)
	case wire.ListSS:
		return rt.handleListSS(username, req)
	case wire.Exec:
		return rt.handleExec(ctx, username, req)
	default:
		return errorResponse(codes.NewInvalidRequestError(fmt.Sprintf("unsupported opcode %s", req.Type)))
	}
}

func errorResponse(err error) *wire.Record {
	se := codes.AsStoreError(err)
	resp := &wire.Record{ErrorCode: se.Code}
	_ = resp.SetData([]byte(se.Message))
	return resp
}

func successResponse(data []byte) *wire.Record {
	resp := &wire.Record{ErrorCode: codes.Success}
	_ = resp.SetData(data)
	return resp
}

func (rt *Router) resolveHome(filename string) (*ssregistry.Record, error) {
	f, err := rt.deps.Metadata.Get(filename)
	if err != nil {
		return nil, err
	}
	rec, ok := rt.deps.SS.Get(f.HomeSS)
	if !ok || rec.Status != ssregistry.StatusActive {
		return nil, codes.NewSsUnavailableError(f.HomeSS)
	}
	return rec, nil
}

func (rt *Router) handleCreate(ctx context.Context, username string, req *wire.Record) *wire.Record {
	filename := req.GetFilename()
	if _, err := rt.deps.Metadata.Get(filename); err == nil {
		return errorResponse(codes.NewFileExistsError(filename))
	}

	// The data field optionally names the target SS (the USE command);
	// empty means the most recently registered active one.
	var rec *ssregistry.Record
	if ssID := string(req.GetData()); ssID != "" {
		var ok bool
		rec, ok = rt.deps.SS.Get(ssID)
		if !ok || rec.Status != ssregistry.StatusActive {
			return errorResponse(codes.NewSsUnavailableError(ssID))
		}
	} else {
		var ok bool
		rec, ok = rt.deps.SS.PickActive()
		if !ok {
			return errorResponse(codes.NewSsUnavailableError("none"))
		}
	}

	ctrlReq := &wire.Record{Type: wire.Create}
	_ = ctrlReq.SetFilename(filename)
	ctrlResp, err := rt.deps.SS.SendControl(ctx, rec.ID, ctrlReq)
	if err != nil {
		return errorResponse(err)
	}
	if ctrlResp.ErrorCode.IsError() {
		return errorResponse(codes.New(ctrlResp.ErrorCode, string(ctrlResp.GetData())))
	}

	if _, err := rt.deps.Metadata.CreateFile(filename, username, rec.ID, req.GetFolder()); err != nil {
		return errorResponse(err)
	}
	rt.deps.SS.AddFile(rec.ID, filename)
	rt.deps.Cache.InvalidateAll()
	return successResponse(nil)
}

func (rt *Router) handleDelete(ctx context.Context, username string, req *wire.Record) *wire.Record {
	filename := req.GetFilename()
	if err := rt.requireOwner(filename, username); err != nil {
		return errorResponse(err)
	}
	f, err := rt.deps.Metadata.Get(filename)
	if err != nil {
		return errorResponse(err)
	}

	ctrlReq := &wire.Record{Type: wire.Delete}
	_ = ctrlReq.SetFilename(filename)
	ctrlResp, err := rt.deps.SS.SendControl(ctx, f.HomeSS, ctrlReq)
	if err != nil {
		return errorResponse(err)
	}
	if ctrlResp.ErrorCode.IsError() {
		return errorResponse(codes.New(ctrlResp.ErrorCode, string(ctrlResp.GetData())))
	}

	if err := rt.deps.Metadata.DeleteFile(filename); err != nil {
		return errorResponse(err)
	}
	rt.deps.SS.RemoveFile(f.HomeSS, filename)
	rt.deps.Cache.InvalidateAll()
	return successResponse(nil)
}

func (rt *Router) handleInfo(ctx context.Context, username string, req *wire.Record) *wire.Record {
	filename := req.GetFilename()
	if err := rt.deps.Metadata.CheckPermission(filename, username, false); err != nil {
		return errorResponse(err)
	}
	rt.refreshStats(ctx, filename)
	f, err := rt.deps.Metadata.Get(filename)
	if err != nil {
		return errorResponse(err)
	}

	out := fmt.Sprintf("%d:%d:%d", f.Size, f.Words, f.Chars)
	if f.Owner == username {
		for _, e := range f.ACL {
			out += fmt.Sprintf(" %s:%d", e.Username, e.Access)
		}
	}
	return successResponse([]byte(out))
}

// handleView enumerates the files username owns or can read (every file
// under -a), one name per entry; under -l each entry also carries the
// size/word/char counts, refreshed from the home SS first.
func (rt *Router) handleView(ctx context.Context, username string, req *wire.Record) *wire.Record {
	all := req.Flags&wire.FlagViewAll != 0
	long := req.Flags&wire.FlagViewLong != 0

	entries := rt.deps.Metadata.EnumerateForView(username, all)
	if long {
		for _, e := range entries {
			rt.refreshStats(ctx, e.Name)
		}
		entries = rt.deps.Metadata.EnumerateForView(username, all)
	}

	out := ""
	for _, e := range entries {
		if long {
			out += fmt.Sprintf("%s:%d:%d:%d ", e.Name, e.Size, e.Words, e.Chars)
		} else {
			out += e.Name + " "
		}
	}
	return successResponse([]byte(out))
}

// refreshStats lazily re-fetches a file's (size, words, chars) from its
// home SS over the control socket, keeping the cached values when the SS
// is unreachable or responds malformed.
func (rt *Router) refreshStats(ctx context.Context, filename string) {
	f, err := rt.deps.Metadata.Get(filename)
	if err != nil {
		return
	}
	ctrlReq := &wire.Record{Type: wire.Info}
	if err := ctrlReq.SetFilename(filename); err != nil {
		return
	}
	resp, err := rt.deps.SS.SendControl(ctx, f.HomeSS, ctrlReq)
	if err != nil || resp.ErrorCode.IsError() {
		return
	}
	var size, words, chars int64
	if _, err := fmt.Sscanf(string(resp.GetData()), "%d:%d:%d", &size, &words, &chars); err != nil {
		return
	}
	_ = rt.deps.Metadata.RefreshStats(filename, size, words, chars)
}

// handleRedirect answers READ/WRITE/STREAM/UNDO/VIEWCHECKPOINT with an
// SsInfo redirect after a permission check; the client then talks directly
// to the home SS and the NS is not involved again until the client's next
// command.
func (rt *Router) handleRedirect(username string, req *wire.Record) *wire.Record {
	filename := req.GetFilename()
	needWrite := req.Type == wire.Write || req.Type == wire.Undo
	if err := rt.deps.Metadata.CheckPermission(filename, username, needWrite); err != nil {
		return errorResponse(err)
	}
	rec, err := rt.resolveHome(filename)
	if err != nil {
		return errorResponse(err)
	}

	resp := &wire.Record{ErrorCode: codes.SsInfo}
	_ = resp.SetSSIP(rec.IP)
	resp.SSPort = rec.ClientPort
	return resp
}

func (rt *Router) handleListUsers(username string, req *wire.Record) *wire.Record {
	filename := req.GetFilename()
	if err := rt.deps.Metadata.CheckPermission(filename, username, false); err != nil {
		return errorResponse(err)
	}
	entries, err := rt.deps.Metadata.ListUsers(filename)
	if err != nil {
		return errorResponse(err)
	}
	out := ""
	for _, e := range entries {
		out += fmt.Sprintf("%s:%d ", e.Username, e.Access)
	}
	return successResponse([]byte(out))
}

func (rt *Router) handleAddAccess(username string, req *wire.Record) *wire.Record {
	filename := req.GetFilename()
	if err := rt.requireOwner(filename, username); err != nil {
		return errorResponse(err)
	}
	target := req.GetUsername()
	bits := metadata.AccessBit(req.Flags)
	if err := rt.deps.Metadata.AddAccess(filename, target, bits); err != nil {
		return errorResponse(err)
	}
	rt.deps.Cache.InvalidateAll()
	return successResponse(nil)
}

func (rt *Router) handleRemAccess(username string, req *wire.Record) *wire.Record {
	filename := req.GetFilename()
	if err := rt.requireOwner(filename, username); err != nil {
		return errorResponse(err)
	}
	target := req.GetUsername()
	if err := rt.deps.Metadata.RemoveAccess(filename, target); err != nil {
		return errorResponse(err)
	}
	rt.deps.Cache.InvalidateAll()
	return successResponse(nil)
}

func (rt *Router) handleRequestAccess(username string, req *wire.Record) *wire.Record {
	filename := req.GetFilename()
	bits := metadata.AccessBit(req.Flags)
	id, err := rt.deps.Metadata.RequestAccess(filename, username, bits)
	if err != nil {
		return errorResponse(err)
	}
	resp := successResponse(nil)
	resp.RequestID = id
	return resp
}

func (rt *Router) handleViewRequests(username string, req *wire.Record) *wire.Record {
	filename := req.GetFilename()
	if err := rt.requireOwner(filename, username); err != nil {
		return errorResponse(err)
	}
	pending, err := rt.deps.Metadata.ViewRequests(filename)
	if err != nil {
		return errorResponse(err)
	}
	out := ""
	for _, r := range pending {
		out += fmt.Sprintf("%d:%s:%d ", r.ID, r.Requester, r.Access)
	}
	return successResponse([]byte(out))
}

func (rt *Router) handleRespondRequest(username string, req *wire.Record) *wire.Record {
	filename := req.GetFilename()
	if err := rt.requireOwner(filename, username); err != nil {
		return errorResponse(err)
	}
	approve := req.Flags != 0
	if err := rt.deps.Metadata.RespondRequest(filename, req.RequestID, approve); err != nil {
		return errorResponse(err)
	}
	return successResponse(nil)
}

func (rt *Router) handleCreateFolder(ctx context.Context, username string, req *wire.Record) *wire.Record {
	path := req.GetFilename()
	if err := rt.deps.Metadata.CreateFolder(path, username); err != nil {
		return errorResponse(err)
	}

	rec, ok := rt.deps.SS.PickActive()
	if ok {
		ctrlReq := &wire.Record{Type: wire.CreateFolder}
		_ = ctrlReq.SetFilename(path)
		_, _ = rt.deps.SS.SendControl(ctx, rec.ID, ctrlReq)
	}

	rt.deps.Cache.InvalidateAll()
	return successResponse(nil)
}

func (rt *Router) handleViewFolder(username string, req *wire.Record) *wire.Record {
	folder := req.GetFolder()
	names, err := rt.deps.Metadata.ListFolder(folder)
	if err != nil {
		return errorResponse(err)
	}
	out := ""
	for _, n := range names {
		if permErr := rt.deps.Metadata.CheckPermission(n, username, false); permErr == nil {
			out += n + " "
		}
	}
	return successResponse([]byte(out))
}

func (rt *Router) handleMove(ctx context.Context, username string, req *wire.Record) *wire.Record {
	filename := req.GetFilename()
	if err := rt.deps.Metadata.CheckPermission(filename, username, true); err != nil {
		return errorResponse(err)
	}
	f, err := rt.deps.Metadata.Get(filename)
	if err != nil {
		return errorResponse(err)
	}
	newFolder := req.GetFolder()

	ctrlReq := &wire.Record{Type: wire.Move}
	_ = ctrlReq.SetFilename(filename)
	_ = ctrlReq.SetFolder(newFolder)
	ctrlResp, err := rt.deps.SS.SendControl(ctx, f.HomeSS, ctrlReq)
	if err != nil {
		return errorResponse(err)
	}
	if ctrlResp.ErrorCode.IsError() {
		return errorResponse(codes.New(ctrlResp.ErrorCode, string(ctrlResp.GetData())))
	}

	if err := rt.deps.Metadata.Move(filename, newFolder); err != nil {
		return errorResponse(err)
	}
	rt.deps.Cache.InvalidateAll()
	return successResponse(nil)
}

func (rt *Router) handleCheckpoint(ctx context.Context, username string, req *wire.Record) *wire.Record {
	filename := req.GetFilename()
	if err := rt.deps.Metadata.CheckPermission(filename, username, true); err != nil {
		return errorResponse(err)
	}
	f, err := rt.deps.Metadata.Get(filename)
	if err != nil {
		return errorResponse(err)
	}
	tag := req.GetCheckpointTag()

	ctrlReq := &wire.Record{Type: wire.Checkpoint}
	_ = ctrlReq.SetFilename(filename)
	_ = ctrlReq.SetCheckpointTag(tag)
	ctrlResp, err := rt.deps.SS.SendControl(ctx, f.HomeSS, ctrlReq)
	if err != nil {
		return errorResponse(err)
	}
	if ctrlResp.ErrorCode.IsError() {
		return errorResponse(codes.New(ctrlResp.ErrorCode, string(ctrlResp.GetData())))
	}

	if err := rt.deps.Metadata.AddCheckpoint(filename, tag, username, f.Size); err != nil {
		return errorResponse(err)
	}
	return successResponse(nil)
}

func (rt *Router) handleRevert(ctx context.Context, username string, req *wire.Record) *wire.Record {
	filename := req.GetFilename()
	if err := rt.deps.Metadata.CheckPermission(filename, username, true); err != nil {
		return errorResponse(err)
	}
	f, err := rt.deps.Metadata.Get(filename)
	if err != nil {
		return errorResponse(err)
	}
	tag := req.GetCheckpointTag()
	if !rt.deps.Metadata.HasCheckpoint(filename, tag) {
		return errorResponse(codes.NewCheckpointNotFoundError(filename, tag))
	}

	ctrlReq := &wire.Record{Type: wire.Revert}
	_ = ctrlReq.SetFilename(filename)
	_ = ctrlReq.SetCheckpointTag(tag)
	ctrlResp, err := rt.deps.SS.SendControl(ctx, f.HomeSS, ctrlReq)
	if err != nil {
		return errorResponse(err)
	}
	if ctrlResp.ErrorCode.IsError() {
		return errorResponse(codes.New(ctrlResp.ErrorCode, string(ctrlResp.GetData())))
	}
	return successResponse(nil)
}

func (rt *Router) handleListCheckpoints(username string, req *wire.Record) *wire.Record {
	filename := req.GetFilename()
	if err := rt.deps.Metadata.CheckPermission(filename, username, false); err != nil {
		return errorResponse(err)
	}
	cps, err := rt.deps.Metadata.ListCheckpoints(filename)
	if err != nil {
		return errorResponse(err)
	}
	out := ""
	for _, c := range cps {
		out += c.Tag + " "
	}
	return successResponse([]byte(out))
}

func (rt *Router) handleSearch(username string, req *wire.Record) *wire.Record {
	pattern := string(req.GetData())
	if cached, ok := rt.deps.Cache.Get(pattern); ok {
		return successResponse([]byte(joinVisible(rt, username, cached)))
	}
	results := rt.deps.Metadata.Search(pattern)
	rt.deps.Cache.Put(pattern, results)
	return successResponse([]byte(joinVisible(rt, username, results)))
}

// joinVisible filters cached/raw search results down to files username can
// currently read, applied at read time rather than cache time so a single
// cache entry can serve every caller without leaking names the caller
// cannot see.
func joinVisible(rt *Router, username string, names []string) string {
	out := ""
	for _, n := range names {
		if err := rt.deps.Metadata.CheckPermission(n, username, false); err == nil {
			out += n + " "
		}
	}
	return out
}

func (rt *Router) handleListSS(username string, req *wire.Record) *wire.Record {
	_ = username
	out := ""
	for _, rec := range rt.deps.SS.List() {
		out += fmt.Sprintf("%s:%s status=%s ", rec.ID, rec.ClientAddr(), rec.Status)
	}
	return successResponse([]byte(out))
}

// handleExec is the one "server-executed" op: the NS itself fetches a
// file's bytes over a one-shot client connection to the home SS's data
// port (the same READ a regular client would perform), runs them as a
// shell script, and returns captured output. It never touches the
// persistent control socket, since READ is a data-plane op.
func (rt *Router) handleExec(ctx context.Context, username string, req *wire.Record) *wire.Record {
	filename := req.GetFilename()
	if err := rt.deps.Metadata.CheckPermission(filename, username, false); err != nil {
		return errorResponse(err)
	}
	rec, err := rt.resolveHome(filename)
	if err != nil {
		return errorResponse(err)
	}

	content, err := rt.fetchFile(ctx, rec, filename)
	if err != nil {
		return errorResponse(err)
	}

	output, err := rt.deps.Exec.Run(ctx, content, 4096)
	if err != nil {
		logger.Warn("exec failed", logger.Filename(filename), logger.Username(username), logger.Err(err))
		return errorResponse(err)
	}
	return successResponse(output)
}

// fetchFile dials the home SS's data port as a one-shot client and issues
// a READ, mirroring what a regular client connection does for the
// duration of a single op.
func (rt *Router) fetchFile(ctx context.Context, rec *ssregistry.Record, filename string) ([]byte, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", rec.ClientAddr())
	if err != nil {
		return nil, codes.NewSsUnavailableError(rec.ID)
	}
	defer conn.Close()

	readReq := &wire.Record{Type: wire.Read}
	if err := readReq.SetFilename(filename); err != nil {
		return nil, codes.NewServerError(err)
	}
	if err := wire.WriteRecord(conn, readReq); err != nil {
		return nil, codes.NewSsUnavailableError(rec.ID)
	}

	resp, err := wire.ReadRecord(conn)
	if err != nil {
		return nil, codes.NewSsUnavailableError(rec.ID)
	}
	if resp.ErrorCode.IsError() {
		return nil, codes.New(resp.ErrorCode, string(resp.GetData()))
	}
	return resp.GetData(), nil
}

func (rt *Router) requireOwner(filename, username string) error {
	isOwner, err := rt.deps.Metadata.IsOwner(filename, username)
	if err != nil {
		return err
	}
	if !isOwner {
		return codes.NewPermissionDeniedError(filename)
	}
	return nil
}
