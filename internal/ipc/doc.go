// Package ipc exchanges the status document and controller commands over a
// fixed shared-memory region.
//
// The region is split in two halves. The service writes the NUL-terminated
// status document into the first half and posts the semaphore. It reads a
// NUL-terminated command from the second half, clears that half and posts
// the semaphore again. A controller waits on the same semaphore before it
// reads the status and writes commands into the second half.
//
// Region and semaphore live under /dev/shm with the names shm_open and
// sem_open would use ("mem" and "sem.sem" for the defaults), so a C
// controller linked against glibc can attach to a Go service and the other
// way round. An existing region or semaphore with the same name is reused.
package ipc
