// Copyright 2018-2019 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xdma

import "os"

func pageSizeForTest() int {
	return os.Getpagesize()
}
