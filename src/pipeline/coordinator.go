package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/stake-plus/deepresearch/src/evidence"
	"github.com/stake-plus/deepresearch/src/extract"
	"github.com/stake-plus/deepresearch/src/mathtool"
	"github.com/stake-plus/deepresearch/src/planner"
	"github.com/stake-plus/deepresearch/src/report"
	"github.com/stake-plus/deepresearch/src/search"
	"github.com/stake-plus/deepresearch/src/snapshot"
	"github.com/stake-plus/deepresearch/src/verify"
)

// Fetcher is the extraction worker seen from the coordinator. Fetch returns
// finished Evidence without writing any store; Probe returns the hash of the
// raw bytes without normalization.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (evidence.Evidence, error)
	Probe(ctx context.Context, url string) (string, error)
}

// Deps are the collaborators a Coordinator needs. Store, Fetcher and
// Searcher are required; the rest default to built-ins.
type Deps struct {
	Store    *snapshot.Store
	Fetcher  Fetcher
	Searcher search.Adapter
	Policy   *snapshot.Policy
	Verifier *verify.Verifier
	Claims   ClaimExtractor
	Synth    Synthesizer
	Math     *mathtool.Evaluator
}

// Config tunes one coordinator. Zero values take defaults.
type Config struct {
	// MaxParallel bounds concurrently running search/extract/math workers.
	MaxParallel int
	// SearchResults is how many candidates to request per search.
	SearchResults int
	// FetchTimeout bounds one snapshot fetch. Fetches run on their own
	// context so a cancelled run never abandons a held fetch lock.
	FetchTimeout time.Duration
	// ProbeTimeout bounds a recrawl authorization probe.
	ProbeTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxParallel <= 0 {
		c.MaxParallel = 3
	}
	if c.SearchResults <= 0 {
		c.SearchResults = 5
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 45 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 10 * time.Second
	}
	return c
}

// Coordinator owns run state. Workers only ever fetch, search or compute;
// every mutation of a Run happens on the goroutine executing the run.
type Coordinator struct {
	store    *snapshot.Store
	fetcher  Fetcher
	searcher search.Adapter
	policy   *snapshot.Policy
	verifier *verify.Verifier
	claims   ClaimExtractor
	synth    Synthesizer
	math     *mathtool.Evaluator
	cfg      Config
	sem      *semaphore.Weighted
}

func New(deps Deps, cfg Config) *Coordinator {
	if deps.Store == nil || deps.Fetcher == nil || deps.Searcher == nil {
		panic("pipeline: store, fetcher and searcher are required")
	}
	cfg = cfg.withDefaults()
	if deps.Verifier == nil {
		deps.Verifier = verify.New(nil)
	}
	if deps.Claims == nil {
		deps.Claims = HeuristicClaimExtractor{}
	}
	if deps.Synth == nil {
		deps.Synth = TextSynthesizer{}
	}
	if deps.Math == nil {
		deps.Math = mathtool.New()
	}
	return &Coordinator{
		store:    deps.Store,
		fetcher:  deps.Fetcher,
		searcher: deps.Searcher,
		policy:   deps.Policy,
		verifier: deps.Verifier,
		claims:   deps.Claims,
		synth:    deps.Synth,
		math:     deps.Math,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(int64(cfg.MaxParallel)),
	}
}

// Request is one research question.
type Request struct {
	Question       string
	AsOf           time.Time // zero means now
	Sources        int
	MathExpression string
}

// outcome is what one worker reports back. Partial outputs (candidates,
// stale evidence) ride along even when err is set.
type outcome struct {
	id         string
	role       planner.Role
	critical   bool
	targetURL  string
	candidates []search.Candidate
	ev         *evidence.Evidence
	value      string
	detail     string
	err        error
}

// Execute runs one request to completion and always returns a report, even
// for stopped or cancelled runs.
func (c *Coordinator) Execute(ctx context.Context, req Request) (*report.Report, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("pipeline: empty question")
	}
	run := newRun(req.Question, req.AsOf)
	log.Printf("pipeline: run %s: %q (as of %s)", run.ID, clip(run.Question, 80), run.AsOf.Format("2006-01-02"))

	plannerReq := planner.Request{Question: req.Question, Sources: req.Sources, MathExpression: req.MathExpression}
	dag, err := planner.Plan(plannerReq, run.AsOf)
	if err != nil {
		var perr *planner.PlanningError
		if !errors.As(err, &perr) {
			return nil, fmt.Errorf("plan: %w", err)
		}
		log.Printf("pipeline: run %s: degrading plan: %v", run.ID, err)
		dag = planner.Fallback(plannerReq)
		run.Degraded = true
	}
	run.setPlan(dag)
	run.State = StateExecuting

	c.executeDAG(ctx, run)

	if ctx.Err() != nil {
		run.stop("cancelled")
	}
	if run.stopped() {
		c.finishPartial(ctx, run)
		log.Printf("pipeline: run %s stopped: %s", run.ID, run.stopReason)
	} else {
		run.State = StateCompleted
		log.Printf("pipeline: run %s completed: %d claims, %d snapshots", run.ID, len(run.labels), len(run.evidenceOrder))
	}
	return c.buildReport(run), nil
}

// executeDAG dispatches ready subtasks and ingests outcomes until every node
// is terminal. Search, extract and math run as workers; verify and synthesize
// execute inline because they are barriers over accumulated state.
func (c *Coordinator) executeDAG(ctx context.Context, run *Run) {
	outcomes := make(chan outcome)
	inFlight := 0
	cancelled := false

	for {
		if !cancelled && !run.stopped() {
			c.dispatch(ctx, run, &inFlight, outcomes)
		}
		if inFlight == 0 {
			return
		}
		done := ctx.Done()
		if cancelled {
			done = nil // already draining, only outcomes can progress
		}
		select {
		case <-done:
			cancelled = true
			log.Printf("pipeline: run %s: cancelled, draining %d in-flight subtask(s)", run.ID, inFlight)
		case out := <-outcomes:
			inFlight--
			c.ingest(run, out, cancelled)
		}
	}
}

// dispatch starts every ready subtask, repeating until no new node becomes
// ready. Inline roles complete immediately and can unlock successors within
// the same pass.
func (c *Coordinator) dispatch(ctx context.Context, run *Run, inFlight *int, outcomes chan<- outcome) {
	for progressed := true; progressed && !run.stopped(); {
		progressed = false
		for _, st := range c.ready(run) {
			progressed = true
			run.status[st.ID] = StatusRunning
			switch st.Role {
			case planner.RoleVerify:
				c.verifyNode(ctx, run, st)
			case planner.RoleSynthesize:
				c.synthesizeNode(ctx, run, st)
			case planner.RoleExtract:
				target := run.nextTarget()
				if target == "" {
					c.ingest(run, outcome{
						id: st.ID, role: st.Role, critical: st.Critical,
						err: errors.New("no candidate source available"),
					}, false)
					continue
				}
				*inFlight++
				go c.runExtract(ctx, st, target, outcomes)
			case planner.RoleSearch:
				*inFlight++
				go c.runSearch(ctx, st, run.Question, outcomes)
			case planner.RoleMath:
				*inFlight++
				go c.runMath(ctx, st, outcomes)
			}
			if run.stopped() {
				return
			}
		}
	}
}

// ready returns pending subtasks whose predecessors are all terminal. Failed
// predecessors do not block successors; missing inputs surface as failures
// of the successor itself.
func (c *Coordinator) ready(run *Run) []planner.Subtask {
	var out []planner.Subtask
	for _, st := range run.dag.Subtasks() {
		if run.status[st.ID] != StatusPending {
			continue
		}
		blocked := false
		for _, pred := range run.dag.Predecessors(st.ID) {
			if !run.terminalStatus(pred) {
				blocked = true
				break
			}
		}
		if !blocked {
			out = append(out, st)
		}
	}
	return out
}

// ingest applies one worker outcome to the run. Partial outputs are kept
// even on failure; results arriving after cancellation are discarded.
func (c *Coordinator) ingest(run *Run, out outcome, discarded bool) {
	if discarded {
		run.status[out.id] = StatusFailed
		run.detail[out.id] = "result discarded (run cancelled)"
		return
	}
	if run.stopped() {
		run.status[out.id] = StatusFailed
		run.detail[out.id] = "run already stopped"
		return
	}

	if len(out.candidates) > 0 {
		run.candidates = append(run.candidates, c.rankCandidates(out.candidates)...)
	}
	if out.ev != nil {
		run.addEvidence(*out.ev)
	}
	if out.targetURL != "" && out.err != nil && extract.KindOf(out.err) == extract.KindDead {
		run.deadURLs[out.targetURL] = true
	}

	if out.err != nil {
		c.fail(run, out)
		return
	}
	run.status[out.id] = StatusDone
	run.detail[out.id] = out.detail
	run.failures = 0
	if out.role == planner.RoleMath {
		run.mathResults[out.id] = out.value
	}
	log.Printf("pipeline: run %s: %s done: %s", run.ID, out.id, out.detail)
}

// fail marks the subtask and advances the consecutive-failure counter when a
// critical source acquisition failed. The run stops at exactly the third.
func (c *Coordinator) fail(run *Run, out outcome) {
	detail := out.err.Error()
	if out.detail != "" {
		detail = out.detail + "; " + detail
	}
	run.status[out.id] = StatusFailed
	run.detail[out.id] = detail
	log.Printf("pipeline: run %s: %s failed: %v", run.ID, out.id, out.err)

	if out.role != planner.RoleExtract || !out.critical {
		return
	}
	run.failures++
	if run.failures >= stopFailThreshold {
		run.stop(fmt.Sprintf("%d consecutive failures to obtain a critical source; last: %v", run.failures, out.err))
	}
}

func (c *Coordinator) runSearch(ctx context.Context, st planner.Subtask, query string, outcomes chan<- outcome) {
	out := outcome{id: st.ID, role: st.Role, critical: st.Critical}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		out.err = fmt.Errorf("worker slot: %w", err)
		outcomes <- out
		return
	}
	defer c.sem.Release(1)

	need := st.MinDeliverables
	if need <= 0 {
		need = 1
	}
	want := c.cfg.SearchResults
	if need > want {
		want = need
	}
	cands, err := c.searcher.Search(ctx, query, want)
	out.candidates = cands
	switch {
	case err != nil:
		out.err = fmt.Errorf("search: %w", err)
	case len(cands) < need:
		out.err = fmt.Errorf("search: found %d of %d required candidate sources", len(cands), need)
	default:
		out.detail = fmt.Sprintf("%d candidate sources", len(cands))
	}
	outcomes <- out
}

func (c *Coordinator) runExtract(ctx context.Context, st planner.Subtask, target string, outcomes chan<- outcome) {
	out := outcome{id: st.ID, role: st.Role, critical: st.Critical, targetURL: target}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		out.err = fmt.Errorf("worker slot: %w", err)
		outcomes <- out
		return
	}
	defer c.sem.Release(1)

	ev, have, err := c.acquireEvidence(ctx, target)
	if have {
		out.ev = &ev
	}
	if err != nil {
		out.err = err
		if have {
			out.detail = fmt.Sprintf("reusing stale snapshot from %s", ev.AccessedAt.Format("2006-01-02"))
		}
		outcomes <- out
		return
	}
	out.detail = fmt.Sprintf("snapshot %s rev %d (%d bytes)", target, ev.Revision, len(ev.Content))
	outcomes <- out
}

func (c *Coordinator) runMath(ctx context.Context, st planner.Subtask, outcomes chan<- outcome) {
	out := outcome{id: st.ID, role: st.Role, critical: st.Critical}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		out.err = fmt.Errorf("worker slot: %w", err)
		outcomes <- out
		return
	}
	defer c.sem.Release(1)

	value, err := c.math.Evaluate(st.Target, nil)
	if err != nil {
		out.err = fmt.Errorf("math: %w", err)
	} else {
		out.value = value
		out.detail = fmt.Sprintf("%s = %s", st.Target, value)
	}
	outcomes <- out
}

// acquireEvidence runs the single-flight protocol for one URL: reuse a fresh
// entry, else take the fetch lock and refresh, else wait for whoever holds
// it. When a refresh fails but an older snapshot exists, that snapshot is
// returned alongside the error so verification can label it outdated.
func (c *Coordinator) acquireEvidence(ctx context.Context, url string) (evidence.Evidence, bool, error) {
	if entry, ok := c.store.Get(url); ok && !entry.FetchInProgress && !c.store.IsStale(url, "") {
		return entry.Evidence, true, nil
	}

	if !c.store.AcquireFetchLock(url) {
		entry, ok, err := c.store.Await(ctx, url)
		if err != nil {
			return evidence.Evidence{}, false, fmt.Errorf("await fetch of %s: %w", url, err)
		}
		if !ok {
			return evidence.Evidence{}, false, &extract.FetchError{
				URL: url, Kind: extract.KindUnreachable,
				Err: errors.New("concurrent fetch failed"),
			}
		}
		return entry.Evidence, true, nil
	}
	defer c.store.ReleaseFetchLock(url)

	// Another holder may have refreshed between the peek and the acquire.
	if entry, ok := c.store.Get(url); ok && !c.store.IsStale(url, "") {
		return entry.Evidence, true, nil
	}

	// Fetches get their own context: a cancelled run lets in-flight fetches
	// finish so the snapshot still lands in the store for later runs.
	fetchCtx, cancel := context.WithTimeout(context.Background(), c.cfg.FetchTimeout)
	defer cancel()
	ev, err := c.fetcher.Fetch(fetchCtx, url)
	if err != nil {
		if entry, ok := c.store.Get(url); ok {
			return entry.Evidence, true, err
		}
		return evidence.Evidence{}, false, err
	}
	entry, err := c.store.Put(url, ev)
	if err != nil {
		return ev, true, fmt.Errorf("store snapshot of %s: %w", url, err)
	}
	return entry.Evidence, true, nil
}

// verifyNode labels the accumulated claims, then loops recrawl authorization
// and re-verification until no authorized refresh remains. Each URL is
// refreshed at most once per run.
func (c *Coordinator) verifyNode(ctx context.Context, run *Run, st planner.Subtask) {
	run.State = StateVerifying
	set := run.evidenceSet()
	claims := c.extractClaims(ctx, run, set)
	labeled, requests := c.verifier.Verify(ctx, claims, set, run.AsOf, c.store)
	run.claims, run.labels, run.verified = claims, labeled, true

	for len(requests) > 0 {
		if c.recrawl(ctx, run, requests) == 0 {
			break
		}
		run.State = StateVerifying
		labeled, requests = c.verifier.Verify(ctx, claims, run.evidenceSet(), run.AsOf, c.store)
		run.labels = labeled
	}

	run.status[st.ID] = StatusDone
	run.detail[st.ID] = fmt.Sprintf("%d claims labeled", len(run.labels))
}

// recrawl refreshes every authorized request and reports how many snapshots
// actually changed hands.
func (c *Coordinator) recrawl(ctx context.Context, run *Run, requests []verify.RecrawlRequest) int {
	run.State = StateRecrawl
	performed := 0
	for _, req := range requests {
		target, why, ok := c.authorizeRecrawl(ctx, run, req)
		if !ok {
			log.Printf("pipeline: run %s: recrawl %s denied: %s", run.ID, req.URL, why)
			continue
		}
		run.recrawled[req.URL] = true
		if target != req.URL {
			run.recrawled[target] = true
		}
		log.Printf("pipeline: run %s: recrawl %s: %s", run.ID, target, why)
		ev, _, err := c.acquireEvidence(ctx, target)
		if err != nil {
			log.Printf("pipeline: run %s: recrawl %s failed: %v", run.ID, target, err)
			continue
		}
		run.addEvidence(ev)
		performed++
	}
	return performed
}

// authorizeRecrawl grants a refresh only when the snapshot's hash drifted
// upstream, its TTL expired, or the source died and an unclaimed substitute
// exists. Verifier requests are advisory; anything else is denied.
func (c *Coordinator) authorizeRecrawl(ctx context.Context, run *Run, req verify.RecrawlRequest) (string, string, bool) {
	if run.recrawled[req.URL] {
		return "", "already recrawled this run", false
	}
	if run.deadURLs[req.URL] {
		if sub := run.substituteTarget(); sub != "" {
			return sub, "source dead, substituting", true
		}
		return "", "source dead and no substitute candidate", false
	}
	if _, present := c.store.Get(req.URL); !present || c.store.IsStale(req.URL, "") {
		return req.URL, "snapshot ttl expired", true
	}
	probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()
	probed, err := c.fetcher.Probe(probeCtx, req.URL)
	if err != nil {
		return "", fmt.Sprintf("probe failed: %v", err), false
	}
	if c.store.IsStale(req.URL, probed) {
		return req.URL, "content changed upstream", true
	}
	return "", "snapshot fresh and upstream unchanged", false
}

func (c *Coordinator) synthesizeNode(ctx context.Context, run *Run, st planner.Subtask) {
	run.State = StateSynthesizing
	run.finalAnswer = c.synthesize(ctx, run)
	run.status[st.ID] = StatusDone
	run.detail[st.ID] = fmt.Sprintf("%d characters", len(run.finalAnswer))
}

func (c *Coordinator) synthesize(ctx context.Context, run *Run) string {
	in := SynthesisInput{
		Question:    run.Question,
		Labeled:     run.labels,
		Evidence:    run.evidenceSet(),
		Candidates:  run.candidates,
		MathResults: run.mathResults,
		Degraded:    run.Degraded,
	}
	if ctx.Err() == nil {
		answer, err := c.synth.Synthesize(ctx, in)
		if err == nil {
			return answer
		}
		log.Printf("pipeline: run %s: synthesis fell back to plain text: %v", run.ID, err)
	}
	answer, _ := TextSynthesizer{}.Synthesize(ctx, in)
	return answer
}

// extractClaims prefers the configured extractor and falls back to the
// deterministic heuristic on error or cancellation.
func (c *Coordinator) extractClaims(ctx context.Context, run *Run, set []evidence.Evidence) []evidence.Claim {
	if ctx.Err() == nil {
		claims, err := c.claims.Extract(ctx, run.Question, set)
		if err == nil && len(claims) > 0 {
			return claims
		}
		if err != nil {
			log.Printf("pipeline: run %s: claim extraction fell back to heuristic: %v", run.ID, err)
		}
	}
	claims, _ := HeuristicClaimExtractor{}.Extract(ctx, run.Question, set)
	return claims
}

// finishPartial gives stopped and cancelled runs their partial output:
// whatever evidence accumulated still gets verified and summarized so the
// report carries citations for what was established before the stop.
func (c *Coordinator) finishPartial(ctx context.Context, run *Run) {
	if !run.verified {
		set := run.evidenceSet()
		claims := c.extractClaims(ctx, run, set)
		labeled, _ := c.verifier.Verify(ctx, claims, set, run.AsOf, nil)
		run.claims, run.labels, run.verified = claims, labeled, true
	}
	if run.finalAnswer == "" {
		run.finalAnswer = c.synthesize(ctx, run)
	}
}

// rankCandidates orders primary-source domains first, preserving search
// order within each tier.
func (c *Coordinator) rankCandidates(cands []search.Candidate) []search.Candidate {
	if c.policy == nil {
		return cands
	}
	ranked := append([]search.Candidate(nil), cands...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return c.sourceRank(ranked[i].URL) < c.sourceRank(ranked[j].URL)
	})
	return ranked
}

func (c *Coordinator) sourceRank(raw string) int {
	norm, err := evidence.NormalizeURL(raw)
	if err != nil {
		return 2
	}
	if c.policy.SourceType(evidence.Domain(norm)) == evidence.SourcePrimary {
		return 0
	}
	return 1
}

func (c *Coordinator) buildReport(run *Run) *report.Report {
	subtasks := make([]report.SubtaskResult, 0, run.dag.Len())
	for _, st := range run.dag.Subtasks() {
		subtasks = append(subtasks, report.SubtaskResult{
			ID:     st.ID,
			Role:   string(st.Role),
			Goal:   st.Goal,
			Status: string(run.status[st.ID]),
			Detail: run.detail[st.ID],
		})
	}
	uncertainties := report.BuildUncertainties(run.labels)
	if run.Degraded {
		uncertainties = append(uncertainties, "plan degraded to search and synthesis only; no claims were independently verified")
	}
	return &report.Report{
		RunID:         run.ID,
		Question:      run.Question,
		Assumptions:   report.Assumptions{AsOfDate: run.AsOf.Format("2006-01-02")},
		Subtasks:      subtasks,
		Claims:        run.labels,
		FinalAnswer:   run.finalAnswer,
		Citations:     report.BuildCitations(run.labels, run.evidenceSet()),
		Uncertainties: uncertainties,
		StopReason:    run.stopReason,
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
