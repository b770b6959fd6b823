// Package rlog is the leveled-logging front door used by rmap, exchange
// and transport. It wraps the vendored glog package: plain
// Infof/Warningf/Errorf calls with no verbosity levels.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package rlog

import (
	"github.com/aistore-labs/ridx/3rdparty/glog"
)

func Infof(format string, args ...any)    { glog.Infof(format, args...) }
func Warningf(format string, args ...any) { glog.Warningf(format, args...) }
func Errorf(format string, args ...any)   { glog.Errorf(format, args...) }

func Flush() { glog.Flush() }
