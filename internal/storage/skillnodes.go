package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/seanharte/mnemo/internal/domain"
)

type skillNodeRow struct {
	ID                string         `db:"id"`
	TreeID            string         `db:"tree_id"`
	ParentID          sql.NullString `db:"parent_id"`
	Depth             int            `db:"depth"`
	Path              string         `db:"path"`
	SortOrder         int            `db:"sort_order"`
	IsEnabled         bool           `db:"is_enabled"`
	MasteryPercentage float64        `db:"mastery_percentage"`
	CardCount         int            `db:"card_count"`
}

func (r skillNodeRow) toDomain() domain.SkillNode {
	node := domain.SkillNode{
		ID:                r.ID,
		TreeID:            r.TreeID,
		Depth:             r.Depth,
		Path:              r.Path,
		SortOrder:         r.SortOrder,
		IsEnabled:         r.IsEnabled,
		MasteryPercentage: r.MasteryPercentage,
		CardCount:         r.CardCount,
	}
	if r.ParentID.Valid {
		v := r.ParentID.String
		node.ParentID = &v
	}
	return node
}

const skillNodeColumns = `id, tree_id, parent_id, depth, path, sort_order, is_enabled,
	mastery_percentage, card_count`

// InsertTree stores a skill tree.
func (db *DB) InsertTree(ctx context.Context, tree *domain.SkillTree) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO skill_trees (id, goal_id, user_id, is_active) VALUES (?, ?, ?, ?)
	`, tree.ID, tree.GoalID, tree.UserID, tree.IsActive)
	if err != nil {
		return fmt.Errorf("failed to insert tree %s: %w", tree.ID, err)
	}
	return nil
}

// FindTreeByID retrieves a tree. Returns (nil, nil) when absent.
func (db *DB) FindTreeByID(ctx context.Context, id string) (*domain.SkillTree, error) {
	var tree domain.SkillTree
	err := db.GetContext(ctx, &tree, `
		SELECT id, goal_id AS goalid, user_id AS userid, is_active AS isactive
		FROM skill_trees WHERE id = ?
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find tree %s: %w", id, err)
	}
	return &tree, nil
}

// ActiveTreeForGoal retrieves the goal's active skill tree.
// Returns (nil, nil) when the goal has none.
func (db *DB) ActiveTreeForGoal(ctx context.Context, goalID string) (*domain.SkillTree, error) {
	var tree domain.SkillTree
	err := db.GetContext(ctx, &tree, `
		SELECT id, goal_id AS goalid, user_id AS userid, is_active AS isactive
		FROM skill_trees WHERE goal_id = ? AND is_active = 1
		LIMIT 1
	`, goalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active tree for goal %s: %w", goalID, err)
	}
	return &tree, nil
}

// InsertNode stores a skill node. Placement validation happens in the
// mastery service before this is called.
func (db *DB) InsertNode(ctx context.Context, node *domain.SkillNode) error {
	var parent sql.NullString
	if node.ParentID != nil {
		parent = sql.NullString{String: *node.ParentID, Valid: true}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO skill_nodes (`+skillNodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, node.ID, node.TreeID, parent, node.Depth, node.Path, node.SortOrder,
		node.IsEnabled, node.MasteryPercentage, node.CardCount)
	if err != nil {
		return fmt.Errorf("failed to insert node %s: %w", node.ID, err)
	}
	return nil
}

// FindNodeByID retrieves a node. Returns (nil, nil) when absent.
func (db *DB) FindNodeByID(ctx context.Context, id string) (*domain.SkillNode, error) {
	var row skillNodeRow
	err := db.GetContext(ctx, &row, `SELECT `+skillNodeColumns+` FROM skill_nodes WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find node %s: %w", id, err)
	}
	node := row.toDomain()
	return &node, nil
}

// NodesForTree retrieves all nodes of a tree ordered deepest-first, then by
// path, which is the processing order for bottom-up mastery rollup.
func (db *DB) NodesForTree(ctx context.Context, treeID string) ([]domain.SkillNode, error) {
	var rows []skillNodeRow
	err := db.SelectContext(ctx, &rows, `
		SELECT `+skillNodeColumns+` FROM skill_nodes
		WHERE tree_id = ?
		ORDER BY depth DESC, path ASC
	`, treeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get nodes for tree %s: %w", treeID, err)
	}
	nodes := make([]domain.SkillNode, 0, len(rows))
	for _, r := range rows {
		nodes = append(nodes, r.toDomain())
	}
	return nodes, nil
}

// EnabledNodesForTree retrieves the enabled nodes of a tree in guided
// walking order (shallowest first, then path).
func (db *DB) EnabledNodesForTree(ctx context.Context, treeID string) ([]domain.SkillNode, error) {
	var rows []skillNodeRow
	err := db.SelectContext(ctx, &rows, `
		SELECT `+skillNodeColumns+` FROM skill_nodes
		WHERE tree_id = ? AND is_enabled = 1
		ORDER BY depth ASC, path ASC
	`, treeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get enabled nodes for tree %s: %w", treeID, err)
	}
	nodes := make([]domain.SkillNode, 0, len(rows))
	for _, r := range rows {
		nodes = append(nodes, r.toDomain())
	}
	return nodes, nil
}

// UpdateNodeMastery persists a recomputed mastery percentage and card count.
func (db *DB) UpdateNodeMastery(ctx context.Context, id string, percentage float64, cardCount int) error {
	_, err := db.ExecContext(ctx, `
		UPDATE skill_nodes SET mastery_percentage = ?, card_count = ? WHERE id = ?
	`, percentage, cardCount, id)
	if err != nil {
		return fmt.Errorf("failed to update mastery for node %s: %w", id, err)
	}
	return nil
}

// SetNodeEnabled flips a node's enabled flag.
func (db *DB) SetNodeEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := db.ExecContext(ctx, `UPDATE skill_nodes SET is_enabled = ? WHERE id = ?`, enabled, id)
	if err != nil {
		return fmt.Errorf("failed to set enabled on node %s: %w", id, err)
	}
	return nil
}
