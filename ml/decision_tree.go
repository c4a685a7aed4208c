package ml

import (
	"math"
	"strconv"
)

// DecisionTree is a binary tree stored as a flat node array rooted at index 0.
type DecisionTree struct {
	nodes []TreeNode
}

// TreeNode is one entry of the flat node array. A leaf may carry
// ClassDistribution, the training samples per class indexed by label, which
// a RandomForest averages instead of counting votes.
type TreeNode struct {
	FeatureIdx        int       `json:"feature_idx"`
	Threshold         float64   `json:"threshold"`
	LeftChild         int       `json:"left_child"`
	RightChild        int       `json:"right_child"`
	ClassLabel        int       `json:"class_label"`
	IsLeaf            bool      `json:"is_leaf"`
	ClassDistribution []float64 `json:"class_distribution,omitempty"`
}

func NewDecisionTree(nodes []TreeNode) (*DecisionTree, error) {
	dt := &DecisionTree{nodes: append([]TreeNode(nil), nodes...)}
	if err := dt.validate(); err != nil {
		return nil, err
	}
	return dt, nil
}

func (dt *DecisionTree) Predict(scaled ScaledVector) (PhaseLabel, error) {
	leaf, err := dt.leaf(scaled)
	if err != nil {
		return 0, err
	}
	return PhaseLabel(leaf.ClassLabel), nil
}

// leaf walks the tree to the leaf that scaled falls into.
func (dt *DecisionTree) leaf(scaled ScaledVector) (*TreeNode, error) {
	if len(dt.nodes) == 0 {
		return nil, &ClassificationError{Reason: "model not loaded"}
	}
	idx := 0
	// A well-formed tree reaches a leaf in at most len(nodes) steps.
	for steps := 0; steps <= len(dt.nodes); steps++ {
		node := &dt.nodes[idx]
		if node.IsLeaf {
			return node, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= FeatureCount {
			return nil, &ClassificationError{Reason: "feature index out of range at node " + strconv.Itoa(idx)}
		}
		if scaled[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.nodes) {
			return nil, &ClassificationError{Reason: "invalid tree state"}
		}
	}
	return nil, &ClassificationError{Reason: "tree contains a cycle"}
}

func (dt *DecisionTree) Load(path string) error {
	var nodes []TreeNode
	if err := loadJSON(path, &nodes); err != nil {
		return err
	}
	dt.nodes = nodes
	return dt.validate()
}

func (dt *DecisionTree) validate() error {
	if len(dt.nodes) == 0 {
		return &ClassificationError{Reason: "tree has no nodes"}
	}
	for i, node := range dt.nodes {
		if node.IsLeaf {
			if err := validateDistribution(node.ClassDistribution); err != nil {
				return &ClassificationError{Reason: err.Reason + " at node " + strconv.Itoa(i)}
			}
			continue
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= FeatureCount {
			return &ClassificationError{Reason: "feature index out of range at node " + strconv.Itoa(i)}
		}
		if node.LeftChild <= i || node.LeftChild >= len(dt.nodes) ||
			node.RightChild <= i || node.RightChild >= len(dt.nodes) {
			return &ClassificationError{Reason: "child index out of range at node " + strconv.Itoa(i)}
		}
	}
	return nil
}

func validateDistribution(dist []float64) *ClassificationError {
	if dist == nil {
		return nil
	}
	var total float64
	for _, v := range dist {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return &ClassificationError{Reason: "invalid class distribution"}
		}
		total += v
	}
	if total <= 0 {
		return &ClassificationError{Reason: "empty class distribution"}
	}
	return nil
}
