// Package mastery recomputes per-node mastery from linked cards and rolls it
// up a skill tree bottom-up.
package mastery

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/seanharte/mnemo/internal/domain"
	"github.com/seanharte/mnemo/internal/storage"
)

// Per-card mastery weights by scheduling state. A Review-state card earns a
// stability bonus on top, capped at 0.5; the denominator normalizes against
// the maximum attainable weight of 1.5 per card.
var baseWeight = map[domain.CardState]float64{
	domain.StateNew:        0,
	domain.StateLearning:   0.25,
	domain.StateRelearning: 0.25,
	domain.StateReview:     1.0,
}

const maxCardWeight = 1.5

// Aggregator recomputes mastery percentages for skill nodes.
type Aggregator struct {
	db *storage.DB
}

// NewAggregator creates an aggregator over the given storage handle.
func NewAggregator(db *storage.DB) *Aggregator {
	return &Aggregator{db: db}
}

// RecalcLeaf recomputes a single node's mastery from its linked cards and
// persists the result. A node with zero linked cards scores 0, not an error.
// Returns domain.ErrNodeNotFound when the node id does not resolve.
func (a *Aggregator) RecalcLeaf(ctx context.Context, nodeID string) (float64, error) {
	node, err := a.db.FindNodeByID(ctx, nodeID)
	if err != nil {
		return 0, err
	}
	if node == nil {
		return 0, fmt.Errorf("recalculating mastery for node %s: %w", nodeID, domain.ErrNodeNotFound)
	}

	cards, err := a.db.CardsForNode(ctx, nodeID)
	if err != nil {
		return 0, err
	}

	pct := leafMastery(cards)
	if err := a.db.UpdateNodeMastery(ctx, nodeID, pct, len(cards)); err != nil {
		return 0, err
	}
	return pct, nil
}

// leafMastery computes the mastery percentage over a set of linked cards.
func leafMastery(cards []domain.Flashcard) float64 {
	if len(cards) == 0 {
		return 0
	}
	var sum float64
	for _, card := range cards {
		w := baseWeight[card.Scheduling.State]
		if card.Scheduling.State == domain.StateReview {
			w += math.Min(card.Scheduling.Stability/30, 0.5)
		}
		sum += w
	}
	return math.Round(100 * sum / (float64(len(cards)) * maxCardWeight))
}

// SetNodeEnabled flips a node's enabled flag. Disabled nodes drop out of
// guided selection and of their parent's rollup; the caller decides when to
// recompute the tree.
func (a *Aggregator) SetNodeEnabled(ctx context.Context, nodeID string, enabled bool) error {
	node, err := a.db.FindNodeByID(ctx, nodeID)
	if err != nil {
		return err
	}
	if node == nil {
		return fmt.Errorf("toggling node %s: %w", nodeID, domain.ErrNodeNotFound)
	}
	return a.db.SetNodeEnabled(ctx, nodeID, enabled)
}

// EnabledNodes lists a tree's enabled nodes in guided walking order.
func (a *Aggregator) EnabledNodes(ctx context.Context, treeID string) ([]domain.SkillNode, error) {
	tree, err := a.db.FindTreeByID(ctx, treeID)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, fmt.Errorf("listing nodes of tree %s: %w", treeID, domain.ErrTreeNotFound)
	}
	return a.db.EnabledNodesForTree(ctx, treeID)
}

// RecalcTree recomputes every node of a tree strictly bottom-up: nodes are
// processed in depth-descending order so a parent is never computed before
// all of its children are finalized. Leaves score from linked cards; internal
// nodes take the unweighted mean over enabled children only. A parent with
// zero enabled children retains its previous value.
// Returns domain.ErrTreeNotFound when the tree id does not resolve.
func (a *Aggregator) RecalcTree(ctx context.Context, treeID string) error {
	tree, err := a.db.FindTreeByID(ctx, treeID)
	if err != nil {
		return err
	}
	if tree == nil {
		return fmt.Errorf("recalculating tree %s: %w", treeID, domain.ErrTreeNotFound)
	}

	nodes, err := a.db.NodesForTree(ctx, treeID)
	if err != nil {
		return err
	}

	children := make(map[string][]*domain.SkillNode)
	for i := range nodes {
		n := &nodes[i]
		if n.ParentID != nil {
			children[*n.ParentID] = append(children[*n.ParentID], n)
		}
	}

	// nodes arrive deepest-first, so by the time a parent comes up every
	// entry in children[parent] already holds its recomputed value.
	for i := range nodes {
		n := &nodes[i]
		kids := children[n.ID]
		if len(kids) == 0 {
			cards, err := a.db.CardsForNode(ctx, n.ID)
			if err != nil {
				return err
			}
			n.MasteryPercentage = leafMastery(cards)
			n.CardCount = len(cards)
		} else {
			var sum float64
			enabled := 0
			for _, kid := range kids {
				if !kid.IsEnabled {
					continue
				}
				sum += kid.MasteryPercentage
				enabled++
			}
			if enabled == 0 {
				// Disabled branch below: leave the previous value standing.
				continue
			}
			n.MasteryPercentage = sum / float64(enabled)
		}
		if err := a.db.UpdateNodeMastery(ctx, n.ID, n.MasteryPercentage, n.CardCount); err != nil {
			return err
		}
	}
	return nil
}

// CreateNode validates a node's placement and inserts it. Placement rules:
// no self-reference, the parent must exist in the same tree, the child sits
// exactly one level below its parent, and the child's path extends the
// parent's path. Root nodes have depth 0 and a single-segment path.
func (a *Aggregator) CreateNode(ctx context.Context, node *domain.SkillNode) error {
	tree, err := a.db.FindTreeByID(ctx, node.TreeID)
	if err != nil {
		return err
	}
	if tree == nil {
		return fmt.Errorf("creating node in tree %s: %w", node.TreeID, domain.ErrTreeNotFound)
	}
	if node.ID == "" {
		node.ID = uuid.NewString()
	}

	if node.ParentID == nil {
		if node.Depth != 0 {
			return fmt.Errorf("root node %s must have depth 0: %w", node.ID, domain.ErrInvalidNode)
		}
	} else {
		if *node.ParentID == node.ID {
			return fmt.Errorf("node %s cannot be its own parent: %w", node.ID, domain.ErrInvalidNode)
		}
		parent, err := a.db.FindNodeByID(ctx, *node.ParentID)
		if err != nil {
			return err
		}
		if parent == nil || parent.TreeID != node.TreeID {
			return fmt.Errorf("parent %s of node %s: %w", *node.ParentID, node.ID, domain.ErrNodeNotFound)
		}
		if node.Depth != parent.Depth+1 {
			return fmt.Errorf("node %s depth %d under parent depth %d: %w",
				node.ID, node.Depth, parent.Depth, domain.ErrInvalidNode)
		}
		if node.Path == "" {
			node.Path = fmt.Sprintf("%s.%03d", parent.Path, node.SortOrder)
		} else if len(node.Path) <= len(parent.Path) || node.Path[:len(parent.Path)+1] != parent.Path+"." {
			return fmt.Errorf("node %s path %q does not extend parent path %q: %w",
				node.ID, node.Path, parent.Path, domain.ErrInvalidNode)
		}
	}
	if node.Path == "" {
		node.Path = fmt.Sprintf("%03d", node.SortOrder)
	}

	return a.db.InsertNode(ctx, node)
}
