package resolve

import (
	"cmp"
	"fmt"
	"sort"
	"strings"

	"github.com/liangyou/dnvm/pkg/models"
)

// RollForward 描述请求版本与可用版本之间允许的漂移程度，语义与 global.json 的 rollForward 一致。
type RollForward int

const (
	Patch RollForward = iota
	Feature
	Minor
	Major
	LatestPatch
	LatestFeature
	LatestMinor
	LatestMajor
	Disable
)

var rollForwardNames = [...]string{
	Patch:         "patch",
	Feature:       "feature",
	Minor:         "minor",
	Major:         "major",
	LatestPatch:   "latestPatch",
	LatestFeature: "latestFeature",
	LatestMinor:   "latestMinor",
	LatestMajor:   "latestMajor",
	Disable:       "disable",
}

func (p RollForward) String() string {
	if p < 0 || int(p) >= len(rollForwardNames) {
		return fmt.Sprintf("RollForward(%d)", int(p))
	}
	return rollForwardNames[p]
}

// ParseRollForward 按名称解析策略，大小写不敏感。
func ParseRollForward(name string) (RollForward, error) {
	for i, n := range rollForwardNames {
		if strings.EqualFold(n, name) {
			return RollForward(i), nil
		}
	}
	return 0, fmt.Errorf("resolve: unknown rollForward policy %q", name)
}

// prefersExact 对非 latest* 策略返回 true：请求的版本存在时直接使用它。
func (p RollForward) prefersExact() bool {
	switch p {
	case Patch, Feature, Minor, Major:
		return true
	}
	return false
}

// Candidate 是一个可供前滚选择的 SDK。Release 与 Sdk 可以为空，例如来自已安装清单的候选。
type Candidate struct {
	Version *models.Version
	Release *models.Release
	Sdk     *models.Component
}

// CandidateList 是按版本降序排列的候选列表，构造一次后可重复查询。
type CandidateList []Candidate

// NewCandidateList 复制并按版本降序排序候选，相同版本只保留第一个。
func NewCandidateList(candidates []Candidate) CandidateList {
	list := make(CandidateList, 0, len(candidates))
	for _, c := range candidates {
		if c.Version != nil {
			list = append(list, c)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Version.GreaterThan(list[j].Version)
	})

	out := list[:0]
	for i, c := range list {
		if i > 0 && c.Version.Equal(out[len(out)-1].Version) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// CandidatesFromReleases 收集发布列表中的全部 SDK。
func CandidatesFromReleases(releases []models.Release) CandidateList {
	var candidates []Candidate
	for i := range releases {
		rel := &releases[i]
		sdks := rel.AllSdks()
		for j := range sdks {
			candidates = append(candidates, Candidate{Version: sdks[j].Version, Release: rel, Sdk: &sdks[j]})
		}
	}
	return NewCandidateList(candidates)
}

// CandidatesFromInstalled 以已安装的 SDK 构造候选。
func CandidatesFromInstalled(sdks []models.InstalledSdk) CandidateList {
	candidates := make([]Candidate, 0, len(sdks))
	for _, sdk := range sdks {
		candidates = append(candidates, Candidate{Version: sdk.SdkVersion})
	}
	return NewCandidateList(candidates)
}

// WithoutPrereleases 过滤掉预览版，结果仍保持降序。
func (l CandidateList) WithoutPrereleases() CandidateList {
	out := make(CandidateList, 0, len(l))
	for _, c := range l {
		if c.Version.Prerelease() == "" {
			out = append(out, c)
		}
	}
	return out
}

// Resolve 在降序候选列表中按策略查找最合适的版本。找不到时第二个返回值为 false。
func Resolve(requested *models.Version, policy RollForward, list CandidateList) (Candidate, bool) {
	if requested == nil || len(list) == 0 {
		return Candidate{}, false
	}

	if policy == Disable || policy.prefersExact() {
		i := sort.Search(len(list), func(i int) bool {
			return list[i].Version.Compare(requested) <= 0
		})
		if i < len(list) && list[i].Version.Equal(requested) {
			return list[i], true
		}
		if policy == Disable {
			return Candidate{}, false
		}
	}

	// compatibility 在降序列表上单调不增：先是高于兼容窗口的 +1 段，
	// 然后是兼容的 0 段，最后是低于请求的 -1 段。
	// 因此第一个 <= 0 的位置若为 0，即为最高的兼容版本。
	i := sort.Search(len(list), func(i int) bool {
		return compatibility(policy, list[i].Version, requested) <= 0
	})
	if i < len(list) && compatibility(policy, list[i].Version, requested) == 0 {
		return list[i], true
	}
	return Candidate{}, false
}

// compatibility 比较候选与请求版本：候选超出策略允许的范围返回 +1，
// 兼容且不低于请求返回 0，低于请求返回 -1。
func compatibility(policy RollForward, candidate, requested *models.Version) int {
	var prefix int
	switch policy {
	case Patch, LatestPatch:
		prefix = compareTuple(
			[]uint64{candidate.Major(), candidate.Minor(), models.FeatureBand(candidate)},
			[]uint64{requested.Major(), requested.Minor(), models.FeatureBand(requested)},
		)
	case Feature, LatestFeature:
		prefix = compareTuple(
			[]uint64{candidate.Major(), candidate.Minor()},
			[]uint64{requested.Major(), requested.Minor()},
		)
	case Minor, LatestMinor:
		prefix = cmp.Compare(candidate.Major(), requested.Major())
	case Major, LatestMajor:
		prefix = 0
	case Disable:
		return candidate.Compare(requested)
	default:
		panic(fmt.Sprintf("resolve: unknown rollForward policy %d", policy))
	}
	if prefix != 0 {
		return prefix
	}
	if candidate.Compare(requested) >= 0 {
		return 0
	}
	return -1
}

func compareTuple(a, b []uint64) int {
	for i := range a {
		if c := cmp.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	return 0
}
