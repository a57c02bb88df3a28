package entities

import (
	"context"
	"sort"
	"strings"

	"github.com/corpusgraph/ingestor/internal/domain"
	pkgerrors "github.com/corpusgraph/ingestor/internal/pkg/errors"
	"github.com/corpusgraph/ingestor/internal/platform/graphstore"
	"github.com/corpusgraph/ingestor/internal/platform/logger"
)

// eligibleLabels excludes Scope and CodeBlock (§4.8: "their value is in
// their references, not NER").
var eligibleLabels = []string{
	"MarkdownDocument", "MarkdownSection", "WebDocument", "VueSFC",
	"SvelteComponent", "Stylesheet", "DataFile", "DataSection",
	"DocumentFile", "PackageJson",
}

// Coordinator runs the nine-step flow of §4.8 against one HTTP Client.
type Coordinator struct {
	Store           graphstore.Store
	Client          *Client
	ClassifyPrefix  int
	DisabledDomains map[string]bool
	ConfidenceMin   float64
	Log             *logger.Logger
}

func NewCoordinator(store graphstore.Store, client *Client, classifyPrefix int, disabledDomains []string, confidenceMin float64, log *logger.Logger) *Coordinator {
	disabled := make(map[string]bool, len(disabledDomains))
	for _, d := range disabledDomains {
		disabled[d] = true
	}
	return &Coordinator{
		Store: store, Client: client, ClassifyPrefix: classifyPrefix,
		DisabledDomains: disabled, ConfidenceMin: confidenceMin,
		Log: log.With("component", "entities.Coordinator"),
	}
}

// RunStats summarizes one pass of the entity phase.
type RunStats struct {
	CandidatesFound  int
	NodesProcessed   int
	NodesSkippedDisabled int
	EntitiesWritten  int
	RelationsWritten int
}

// RunProject executes the full nine-step flow. A service-unreachable probe
// (step 1) is a degraded outcome, not an error: the caller should proceed
// to the embedding phase regardless (§7 propagation policy).
func (co *Coordinator) RunProject(ctx context.Context, projectID string) (RunStats, error) {
	stats := RunStats{}

	if _, err := co.Client.Health(ctx); err != nil {
		co.Log.Warn("entity service unreachable, skipping entity phase", "error", err)
		return stats, nil
	}

	if _, err := co.Client.LoadModel(ctx); err != nil {
		co.Log.Warn("entity model load failed, skipping entity phase", "error", err)
		return stats, nil
	}
	defer func() {
		if _, err := co.Client.UnloadModel(ctx); err != nil {
			co.Log.Warn("entity model unload failed", "error", err)
		}
	}()

	candidates, err := co.candidates(ctx, projectID)
	if err != nil {
		return stats, err
	}
	stats.CandidatesFound = len(candidates)
	if len(candidates) == 0 {
		return stats, nil
	}

	byFile := groupByFile(candidates)
	combos, err := co.classifyFiles(ctx, byFile)
	if err != nil {
		return stats, err
	}

	byCombo := map[string][]*domain.Node{}
	for fileUUID, nodes := range byFile {
		combo := combos[fileUUID]
		byCombo[combo] = append(byCombo[combo], nodes...)
	}

	presets, err := co.Client.Presets(ctx)
	if err != nil {
		co.Log.Warn("could not fetch presets, using empty type vocabulary", "error", err)
		presets = map[string]Preset{}
	}

	for combo, nodes := range byCombo {
		if err := co.processCombo(ctx, combo, nodes, presets, &stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// candidates fetches every node of an eligible label whose
// _entitiesContentHash is absent or stale (§4.8 step 3).
func (co *Coordinator) candidates(ctx context.Context, projectID string) ([]*domain.Node, error) {
	nodes, err := co.Store.GetNodesByLabelsAndState(ctx, projectID, eligibleLabels, string(domain.NodeLinked))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
	}
	var out []*domain.Node
	for _, n := range nodes {
		contentHash := n.GetString(domain.PropContentHash)
		entitiesHash := n.GetString(domain.PropEntitiesContentHash)
		if entitiesHash == "" || entitiesHash != contentHash {
			out = append(out, n)
		}
	}
	return out, nil
}

func groupByFile(nodes []*domain.Node) map[string][]*domain.Node {
	byFile := map[string][]*domain.Node{}
	for _, n := range nodes {
		fileUUID := n.GetString(domain.PropFileUUID)
		byFile[fileUUID] = append(byFile[fileUUID], n)
	}
	return byFile
}

// classifyFiles classifies each distinct file by domain via one
// classifyBatch call over the first ClassifyPrefix characters of its first
// candidate node's content, falling back to "default" on failure
// (§4.8 step 4).
func (co *Coordinator) classifyFiles(ctx context.Context, byFile map[string][]*domain.Node) (map[string]string, error) {
	fileUUIDs := make([]string, 0, len(byFile))
	texts := make([]string, 0, len(byFile))
	for fileUUID, nodes := range byFile {
		fileUUIDs = append(fileUUIDs, fileUUID)
		texts = append(texts, prefixText(nodes[0].GetString(domain.PropContent), co.ClassifyPrefix))
	}

	results, err := co.Client.ClassifyBatch(ctx, texts)
	combos := make(map[string]string, len(byFile))
	if err != nil {
		co.Log.Warn("classify batch failed, falling back to default domain for all files", "error", err)
		for _, f := range fileUUIDs {
			combos[f] = "default"
		}
		return combos, nil
	}
	for i, f := range fileUUIDs {
		if i >= len(results) || len(results[i]) == 0 {
			combos[f] = "default"
			continue
		}
		combos[f] = comboKey(results[i])
	}
	return combos, nil
}

func comboKey(labels []Classification) string {
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.Label
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

func prefixText(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

// processCombo implements steps 6-9 for one combo's worth of candidate
// nodes.
func (co *Coordinator) processCombo(ctx context.Context, combo string, nodes []*domain.Node, presets map[string]Preset, stats *RunStats) error {
	domains := strings.Split(combo, "|")
	var entityTypes, relationTypes []string
	allDisabled := true
	for _, d := range domains {
		if co.DisabledDomains[d] {
			continue
		}
		preset, ok := presets[d]
		if !ok {
			continue
		}
		if preset.Enabled != nil && !*preset.Enabled {
			continue
		}
		allDisabled = false
		entityTypes = append(entityTypes, preset.EntityTypes...)
		relationTypes = append(relationTypes, preset.RelationTypes...)
	}

	if allDisabled {
		stats.NodesSkippedDisabled += len(nodes)
		return co.markProcessed(ctx, nodes)
	}

	const maxBatch = 1000
	for i := 0; i < len(nodes); i += maxBatch {
		end := i + maxBatch
		if end > len(nodes) {
			end = len(nodes)
		}
		batch := nodes[i:end]
		if err := co.extractAndWrite(ctx, batch, entityTypes, relationTypes, stats); err != nil {
			return err
		}
	}
	return nil
}

func (co *Coordinator) extractAndWrite(ctx context.Context, nodes []*domain.Node, entityTypes, relationTypes []string, stats *RunStats) error {
	texts := make([]string, len(nodes))
	for i, n := range nodes {
		texts[i] = n.GetString(domain.PropContent)
	}
	results, err := co.Client.ExtractBatch(ctx, texts, entityTypes, relationTypes)
	if err != nil {
		co.Log.Warn("extract batch failed for combo", "error", err)
		return nil // degraded: leave these nodes' hash unmarked so a later run retries
	}

	entitiesByLabel := map[string][]map[string]any{}
	var mentionRows []graphstore.RelRow
	var relationRows []graphstore.RelRow
	nameToUUID := map[string]string{}

	for i, n := range nodes {
		if i >= len(results) {
			continue
		}
		result := results[i]
		newMentions := map[string]bool{}
		for _, e := range result.Entities {
			if e.Confidence < co.ConfidenceMin {
				continue
			}
			entity := domain.NewEntity(n.GetString(domain.PropProjectID), e.Type, e.Name, e.Confidence)
			entitiesByLabel["Entity"] = append(entitiesByLabel["Entity"], entity.Properties)
			nameToUUID[domain.NormalizeEntityName(e.Name)] = entity.UUID
			newMentions[entity.UUID] = true
			mentionRows = append(mentionRows, graphstore.RelRow{FromUUID: n.UUID, ToUUID: entity.UUID, Properties: map[string]any{domain.MentionConfidence: e.Confidence}})
		}

		existing, err := co.Store.GetOutboundRelationships(ctx, n.UUID, domain.EdgeMentions)
		if err != nil {
			return pkgerrors.New(pkgerrors.KindGraphTransient, n.UUID, err)
		}
		var stale []string
		for _, rel := range existing {
			if !newMentions[rel.ToUUID] {
				stale = append(stale, rel.ToUUID)
			}
		}
		if len(stale) > 0 {
			if err := co.Store.DeleteRelationships(ctx, domain.EdgeMentions, []string{n.UUID}, stale); err != nil {
				return pkgerrors.New(pkgerrors.KindGraphTransient, n.UUID, err)
			}
		}

		for _, rel := range result.Relations {
			subjectUUID, subOK := nameToUUID[domain.NormalizeEntityName(rel.Subject)]
			objectUUID, objOK := nameToUUID[domain.NormalizeEntityName(rel.Object)]
			if !subOK || !objOK {
				continue
			}
			relationRows = append(relationRows, graphstore.RelRow{FromUUID: subjectUUID, ToUUID: objectUUID, Properties: map[string]any{
				domain.RelatedPredicate:  rel.Predicate,
				domain.RelatedConfidence: rel.Confidence,
			}})
		}
	}

	for label, rows := range entitiesByLabel {
		if err := co.Store.UpsertNodes(ctx, label, rows, "uuid"); err != nil {
			return pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
		}
		stats.EntitiesWritten += len(rows)
	}
	if len(mentionRows) > 0 {
		if err := co.Store.UpsertRelationships(ctx, domain.EdgeMentions, dedupeHighestConfidence(mentionRows)); err != nil {
			return pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
		}
	}
	if len(relationRows) > 0 {
		deduped := dedupeHighestConfidence(relationRows)
		if err := co.Store.UpsertRelationships(ctx, domain.EdgeRelatedTo, deduped); err != nil {
			return pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
		}
		stats.RelationsWritten += len(deduped)
	}

	if err := co.cleanupOrphans(ctx, nodes[0].GetString(domain.PropProjectID)); err != nil {
		return err
	}
	stats.NodesProcessed += len(nodes)
	return co.markProcessed(ctx, nodes)
}

// dedupeHighestConfidence keeps the highest-confidence row per (from, to)
// pair (§4.8 step 8: "for duplicates, keep the higher confidence").
func dedupeHighestConfidence(rows []graphstore.RelRow) []graphstore.RelRow {
	best := map[string]graphstore.RelRow{}
	for _, r := range rows {
		key := r.FromUUID + "|" + r.ToUUID
		existing, ok := best[key]
		if !ok || confidenceOf(r) > confidenceOf(existing) {
			best[key] = r
		}
	}
	out := make([]graphstore.RelRow, 0, len(best))
	for _, r := range best {
		out = append(out, r)
	}
	return out
}

func confidenceOf(r graphstore.RelRow) float64 {
	if r.Properties == nil {
		return 0
	}
	if v, ok := r.Properties[domain.MentionConfidence]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	if v, ok := r.Properties[domain.RelatedConfidence]; ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return 0
}

func (co *Coordinator) cleanupOrphans(ctx context.Context, projectID string) error {
	orphans, err := co.Store.GetOrphanEntities(ctx, projectID)
	if err != nil {
		return pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
	}
	if len(orphans) == 0 {
		return nil
	}
	uuids := make([]string, len(orphans))
	for i, o := range orphans {
		uuids[i] = o.UUID
	}
	if err := co.Store.DeleteNodes(ctx, "Entity", uuids); err != nil {
		return pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
	}
	return nil
}

// markProcessed implements step 9: stamp _entitiesContentHash =
// _contentHash so a subsequent run skips these nodes unless content
// changes.
func (co *Coordinator) markProcessed(ctx context.Context, nodes []*domain.Node) error {
	byLabel := map[string][]map[string]any{}
	for _, n := range nodes {
		byLabel[n.PrimaryLabel()] = append(byLabel[n.PrimaryLabel()], map[string]any{
			domain.PropUUID:                n.UUID,
			domain.PropEntitiesContentHash: n.GetString(domain.PropContentHash),
		})
	}
	for label, rows := range byLabel {
		if err := co.Store.UpsertNodes(ctx, label, rows, "uuid"); err != nil {
			return pkgerrors.New(pkgerrors.KindGraphTransient, "", err)
		}
	}
	return nil
}
