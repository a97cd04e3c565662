package common

import "fmt"

type FileID uint64

type PageID uint64

type PageIdentity struct {
	FileID FileID
	PageID PageID
}

func (p PageIdentity) String() string {
	return fmt.Sprintf("page(%d:%d)", p.FileID, p.PageID)
}
