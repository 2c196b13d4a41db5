//go:build !linux

package main

import (
	"context"
	"fmt"

	"github.com/ardnew/prpsweep/config"
	"github.com/ardnew/prpsweep/pkg"
)

func openLinux(context.Context, config.Config) (*backend, error) {
	return nil, fmt.Errorf("%w: linux backend on this platform", pkg.ErrNotSupported)
}
