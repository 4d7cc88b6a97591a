package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"polar-keeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResolver() *DependencyResolver {
	r := NewDependencyResolver()
	r.CheckTimeout = 5 * time.Second
	r.InstallTimeout = 5 * time.Second
	return r
}

func profileWith(pm models.PackageManager) *models.HostProfile {
	return &models.HostProfile{Kind: models.ProfileStandard, PackageManager: pm}
}

/**
 * Test that a satisfied dependency short-circuits installation
 * @param {*testing.T} t - Testing framework instance
 * @description
 * - A passing check command means no install attempt happens, even on a
 *   host without any package manager
 */
func TestEnsureSatisfiedShortCircuits(t *testing.T) {
	specs := []models.DependencySpec{
		{Name: "present-tool", Checks: [][]string{{"true"}}},
	}

	err := testResolver().Ensure(context.Background(), specs, profileWith(models.NoPackageManager))
	require.NoError(t, err)
}

// 多条检查命令: 任意一条成功即满足
func TestEnsureAnyCheckSuffices(t *testing.T) {
	specs := []models.DependencySpec{
		{Name: "alt-tool", Checks: [][]string{{"false"}, {"true"}}},
	}

	err := testResolver().Ensure(context.Background(), specs, profileWith(models.NoPackageManager))
	require.NoError(t, err)
}

/**
 * Test the error when a dependency is missing with no usable candidate
 * @param {*testing.T} t - Testing framework instance
 * @description
 * - No candidate matches the host package manager
 * - The typed error carries the dependency name and no attempted package
 */
func TestEnsureMissingNoCandidate(t *testing.T) {
	specs := []models.DependencySpec{
		{
			Name:   "impossible-tool",
			Checks: [][]string{{"false"}},
			Candidates: []models.InstallCandidate{
				{Manager: models.AptGet, Package: "impossible-tool"},
			},
		},
	}

	// 无包管理器的档案与AptGet候选不匹配
	err := testResolver().Ensure(context.Background(), specs, profileWith(models.NoPackageManager))
	require.Error(t, err)

	var depErr *MissingDependencyError
	require.True(t, errors.As(err, &depErr))
	assert.Equal(t, "impossible-tool", depErr.Name)
	assert.Empty(t, depErr.AttemptedCandidate)
}

/**
 * Test the error after a failed install attempt
 * @param {*testing.T} t - Testing framework instance
 * @description
 * - The candidate matches the host but its install command fails
 * - The typed error must name the attempted package for the remedy hint
 */
func TestEnsureInstallFails(t *testing.T) {
	specs := []models.DependencySpec{
		{
			Name:   "broken-tool",
			Checks: [][]string{{"false"}},
			Candidates: []models.InstallCandidate{
				{Manager: models.Opkg, Package: "no-such-package"},
			},
		},
	}

	// 测试主机上没有opkg，安装命令必然失败
	err := testResolver().Ensure(context.Background(), specs, profileWith(models.Opkg))
	require.Error(t, err)

	var depErr *MissingDependencyError
	require.True(t, errors.As(err, &depErr))
	assert.Equal(t, "broken-tool", depErr.Name)
	assert.Equal(t, "no-such-package", depErr.AttemptedCandidate)
}

// 第一个依赖失败即中止，后面的不再检查
func TestEnsureStopsAtFirstFailure(t *testing.T) {
	specs := []models.DependencySpec{
		{Name: "first", Checks: [][]string{{"false"}}},
		{Name: "second", Checks: [][]string{{"true"}}},
	}

	err := testResolver().Ensure(context.Background(), specs, profileWith(models.NoPackageManager))
	require.Error(t, err)

	var depErr *MissingDependencyError
	require.True(t, errors.As(err, &depErr))
	assert.Equal(t, "first", depErr.Name)
}

// 默认依赖声明: 每条都要有名字，候选覆盖两种包管理器
func TestDefaultDependenciesShape(t *testing.T) {
	deps := DefaultDependencies()
	require.NotEmpty(t, deps)
	for _, dep := range deps {
		assert.NotEmpty(t, dep.Name)
		assert.True(t, len(dep.Checks) > 0 || len(dep.ImportProbes) > 0,
			"dependency '%s' has no way to be checked", dep.Name)
	}
}
