package version

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/liangyou/dnvm/pkg/models"
)

// Selector 切换当前激活的 SDK 目录。
type Selector struct {
	deps Deps
}

// NewSelector 创建 Selector。
func NewSelector(deps Deps) *Selector {
	return &Selector{deps: deps}
}

// Select 校验目录中存在已安装的 SDK，然后切换激活目录并记录到清单。
func (s *Selector) Select(ctx context.Context, dir models.SdkDirName) error {
	return s.deps.Workspace.Mutate(ctx, "select", func(m models.Manifest) (models.Manifest, error) {
		valid := m.SdkDirs()
		if !slices.Contains(valid, dir) {
			return m, &BadDirNameError{Name: dir, Valid: valid}
		}
		if s.deps.Activator == nil {
			return m, fmt.Errorf("select: no activator configured")
		}

		if err := s.deps.Activator.Activate(m.CurrentSdkDir, dir); err != nil {
			return m, err
		}
		s.deps.log().Info("sdk dir selected", zap.Stringer("from", m.CurrentSdkDir), zap.Stringer("to", dir))
		return m.WithCurrentDir(dir), nil
	})
}
