// SPDX-License-Identifier: GPL-2.0-or-later

// Package mount exposes a Package's VFS as a read-only FUSE filesystem.
package mount

import (
	"context"
	"os"
	"path"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/datawire/dlib/dcontext"
	"github.com/datawire/dlib/dgroup"
	"github.com/datawire/dlib/dlog"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"

	"github.com/Qix-/starfuse/lib/vfs"
)

// Run mounts fsys at mountpoint and blocks until it is unmounted or ctx is
// canceled.
func Run(ctx context.Context, fsys *vfs.FS, source, mountpoint string) error {
	cfg := &fuse.MountConfig{
		FSName:   source,
		Subtype:  "starpak",
		ReadOnly: true,
	}
	return fuseMount(ctx, mountpoint, fuseutil.NewFileSystemServer(newFS(fsys)), cfg)
}

// fuseMount runs the mount/unmount lifecycle under a signal-aware goroutine
// group: one goroutine owns the blocking mount, a second tears it down on
// context cancellation.
func fuseMount(ctx context.Context, mountpoint string, server fuse.Server, cfg *fuse.MountConfig) error {
	grp := dgroup.NewGroup(ctx, dgroup.GroupConfig{
		ShutdownOnNonError: true,
	})
	mounted := uint32(1)
	grp.Go("unmount", func(ctx context.Context) error {
		<-ctx.Done()
		var err error
		var gotNil bool
		for atomic.LoadUint32(&mounted) != 0 {
			if _err := fuse.Unmount(mountpoint); _err == nil {
				gotNil = true
			} else if !gotNil {
				err = _err
			}
		}
		if gotNil {
			return nil
		}
		return err
	})
	grp.Go("mount", func(ctx context.Context) error {
		defer atomic.StoreUint32(&mounted, 0)

		cfg.OpContext = ctx
		cfg.ErrorLogger = dlog.StdLogger(ctx, dlog.LogLevelError)
		cfg.DebugLogger = dlog.StdLogger(ctx, dlog.LogLevelDebug)

		mountHandle, err := fuse.Mount(mountpoint, server, cfg)
		if err != nil {
			return err
		}
		dlog.Infof(ctx, "mounted %q", mountpoint)
		return mountHandle.Join(dcontext.HardContext(ctx))
	})
	return grp.Wait()
}

// fuseFS adapts a vfs.FS to fuseutil.FileSystem by inventing inode numbers
// for paths as they're discovered.
type fuseFS struct {
	fuseutil.NotImplementedFileSystem
	fs *vfs.FS

	mu          sync.Mutex
	nextInode   fuseops.InodeID
	pathToInode map[string]fuseops.InodeID
	inodeToPath map[fuseops.InodeID]string

	lastHandle uint64
}

func newFS(fs *vfs.FS) *fuseFS {
	return &fuseFS{
		fs:          fs,
		nextInode:   fuseops.RootInodeID + 1,
		pathToInode: map[string]fuseops.InodeID{"/": fuseops.RootInodeID},
		inodeToPath: map[fuseops.InodeID]string{fuseops.RootInodeID: "/"},
	}
}

func (fs *fuseFS) inodeFor(p string) fuseops.InodeID {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if id, ok := fs.pathToInode[p]; ok {
		return id
	}
	id := fs.nextInode
	fs.nextInode++
	fs.pathToInode[p] = id
	fs.inodeToPath[id] = p
	return id
}

func (fs *fuseFS) pathFor(id fuseops.InodeID) (string, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	p, ok := fs.inodeToPath[id]
	return p, ok
}

func (fs *fuseFS) newHandle() fuseops.HandleID {
	return fuseops.HandleID(atomic.AddUint64(&fs.lastHandle, 1))
}

// toErrno maps a vfs error to the errno FUSE expects. Anything unrecognized
// is passed through as-is; jacobsa/fuse treats any non-syscall.Errno error
// as EIO.
func toErrno(err error) error {
	switch err.(type) {
	case *vfs.NotFoundError:
		return syscall.ENOENT
	case *vfs.NotADirError:
		return syscall.ENOTDIR
	case *vfs.IsADirError:
		return syscall.EISDIR
	default:
		return err
	}
}

func attrsFor(info vfs.Info) fuseops.InodeAttributes {
	mode := os.FileMode(0o444)
	if info.IsDir {
		mode = os.ModeDir | 0o555
	}
	return fuseops.InodeAttributes{
		Size:  uint64(info.Size),
		Nlink: 1,
		Mode:  uint32(mode),
	}
}

func (fs *fuseFS) StatFS(_ context.Context, op *fuseops.StatFSOp) error {
	op.BlockSize = 4096
	op.IoSize = 4096
	return nil
}

func (fs *fuseFS) LookUpInode(_ context.Context, op *fuseops.LookUpInodeOp) error {
	parent, ok := fs.pathFor(op.Parent)
	if !ok {
		return syscall.ENOENT
	}
	childPath := path.Join(parent, op.Name)

	info, err := fs.fs.Stat(childPath)
	if err != nil {
		return toErrno(err)
	}
	op.Entry = fuseops.ChildInodeEntry{
		Child:      fs.inodeFor(childPath),
		Attributes: attrsFor(info),
	}
	return nil
}

func (fs *fuseFS) GetInodeAttributes(_ context.Context, op *fuseops.GetInodeAttributesOp) error {
	p, ok := fs.pathFor(op.Inode)
	if !ok {
		return syscall.ENOENT
	}
	info, err := fs.fs.Stat(p)
	if err != nil {
		return toErrno(err)
	}
	op.Attributes = attrsFor(info)
	return nil
}

func (fs *fuseFS) OpenDir(_ context.Context, op *fuseops.OpenDirOp) error {
	p, ok := fs.pathFor(op.Inode)
	if !ok {
		return syscall.ENOENT
	}
	if _, err := fs.fs.ReadDir(p); err != nil {
		return toErrno(err)
	}
	op.Handle = fs.newHandle()
	return nil
}

func (fs *fuseFS) ReadDir(_ context.Context, op *fuseops.ReadDirOp) error {
	p, ok := fs.pathFor(op.Inode)
	if !ok {
		return syscall.ENOENT
	}
	names, err := fs.fs.ReadDir(p)
	if err != nil {
		return toErrno(err)
	}

	for i, name := range names {
		if uint64(i) < uint64(op.Offset) {
			continue
		}
		childPath := path.Join(p, name)
		info, err := fs.fs.Stat(childPath)
		if err != nil {
			return toErrno(err)
		}
		direntType := fuseutil.DT_File
		if info.IsDir {
			direntType = fuseutil.DT_Directory
		}
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], fuseutil.Dirent{
			Offset: fuseops.DirOffset(i + 1),
			Inode:  fs.inodeFor(childPath),
			Name:   name,
			Type:   direntType,
		})
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}

func (fs *fuseFS) ReleaseDirHandle(_ context.Context, _ *fuseops.ReleaseDirHandleOp) error {
	return nil
}

func (fs *fuseFS) OpenFile(_ context.Context, op *fuseops.OpenFileOp) error {
	p, ok := fs.pathFor(op.Inode)
	if !ok {
		return syscall.ENOENT
	}
	if _, err := fs.fs.Stat(p); err != nil {
		return toErrno(err)
	}
	op.Handle = fs.newHandle()
	op.KeepPageCache = true
	return nil
}

func (fs *fuseFS) ReadFile(_ context.Context, op *fuseops.ReadFileOp) error {
	p, ok := fs.pathFor(op.Inode)
	if !ok {
		return syscall.ENOENT
	}
	data, err := fs.fs.ReadFile(p, op.Offset, int64(len(op.Dst)))
	if err != nil {
		return toErrno(err)
	}
	op.BytesRead = copy(op.Dst, data)
	return nil
}

func (fs *fuseFS) ReleaseFileHandle(_ context.Context, _ *fuseops.ReleaseFileHandleOp) error {
	return nil
}

func (*fuseFS) Destroy() {}
