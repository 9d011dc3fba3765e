package scene

import "github.com/Carmen-Shannon/oxy-ssao/common"

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithItems adds initial items to the scene. Items that do not fit are dropped with a warning.
//
// Parameters:
//   - items: the items to add
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithItems(items ...RenderItem) SceneBuilderOption {
	return func(s *scene) {
		for _, it := range items {
			if err := s.insert(it); err != nil {
				common.Logger().Warn("initial scene item dropped", "scene", s.name, "item", it.Name(), "err", err)
			}
		}
	}
}

// WithTracker replaces the default DirtyObjectTracker.
//
// Parameters:
//   - t: the tracker
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithTracker(t DirtyObjectTracker) SceneBuilderOption {
	return func(s *scene) {
		s.tracker = t
	}
}
