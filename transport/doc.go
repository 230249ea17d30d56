// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package transport owns raw socket descriptors: the single-owner FD
// handle, listening sockets, accepted connections and their read buffers.
package transport
