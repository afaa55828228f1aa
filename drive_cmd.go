package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"gdrivechat/drive"
	"gdrivechat/render"
)

// DriveCmd runs single operations without the chat layer. The tool server is
// not started, so everything goes to the Drive API.
type DriveCmd struct {
	Ls     DriveLsCmd     `cmd:"" help:"List a folder"`
	Search DriveSearchCmd `cmd:"" help:"Search by name or content"`
	Cat    DriveCatCmd    `cmd:"" help:"Print a file's text"`
	Mkdir  DriveMkdirCmd  `cmd:"" help:"Create a folder"`
	Upload DriveUploadCmd `cmd:"" help:"Upload a local file"`
	Rm     DriveRmCmd     `cmd:"" help:"Delete a file or folder"`
}

func withDrive(ctx context.Context, g *Globals, fn func(*app) error) error {
	a, err := newApp(ctx, g, appOptions{connect: false})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printFiles(files []drive.FileRecord) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tSIZE\tMODIFIED")
	for _, f := range files {
		modified := ""
		if f.ModifiedTime != nil {
			modified = f.ModifiedTime.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\t%s\n", f.ID, render.Icon(f), f.Name, render.MimeLabel(f.MimeType), render.SizeOf(f.Size), modified)
	}
	return w.Flush()
}

type DriveLsCmd struct {
	Folder string `arg:"" optional:"" default:"root" help:"Folder id"`
	Limit  int    `short:"n" default:"50" help:"Maximum entries"`
}

func (c *DriveLsCmd) Run(ctx context.Context, g *Globals) error {
	return withDrive(ctx, g, func(a *app) error {
		files, err := a.dispatcher.List(ctx, c.Folder, c.Limit).Unwrap()
		if err != nil {
			return err
		}
		return printFiles(files)
	})
}

type DriveSearchCmd struct {
	Term  string `arg:"" help:"Search term"`
	Limit int    `short:"n" default:"50" help:"Maximum entries"`
}

func (c *DriveSearchCmd) Run(ctx context.Context, g *Globals) error {
	return withDrive(ctx, g, func(a *app) error {
		files, err := a.dispatcher.Search(ctx, c.Term, c.Limit).Unwrap()
		if err != nil {
			return err
		}
		return printFiles(files)
	})
}

type DriveCatCmd struct {
	FileID string `arg:"" help:"File id"`
	Raw    bool   `help:"Download the raw bytes instead of exported text"`
}

func (c *DriveCatCmd) Run(ctx context.Context, g *Globals) error {
	return withDrive(ctx, g, func(a *app) error {
		if c.Raw {
			data, err := a.dispatcher.Download(ctx, c.FileID).Unwrap()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		}
		text, err := a.dispatcher.Read(ctx, c.FileID).Unwrap()
		if err != nil {
			return err
		}
		fmt.Println(text)
		return nil
	})
}

type DriveMkdirCmd struct {
	Name   string `arg:"" help:"Folder name"`
	Parent string `default:"root" help:"Parent folder id"`
}

func (c *DriveMkdirCmd) Run(ctx context.Context, g *Globals) error {
	return withDrive(ctx, g, func(a *app) error {
		f, err := a.dispatcher.CreateFolder(ctx, c.Name, c.Parent).Unwrap()
		if err != nil {
			return err
		}
		fmt.Printf("Created %s (%s)\n", f.Name, f.ID)
		return nil
	})
}

type DriveUploadCmd struct {
	Path   string `arg:"" type:"existingfile" help:"Local file"`
	Name   string `help:"Name in Drive (default: local file name)"`
	Parent string `default:"root" help:"Parent folder id"`
	Mime   string `help:"MIME type (default: from extension)"`
}

func (c *DriveUploadCmd) Run(ctx context.Context, g *Globals) error {
	f, err := os.Open(c.Path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", c.Path, err)
	}
	defer f.Close()

	name := c.Name
	if name == "" {
		name = filepath.Base(c.Path)
	}
	mimeType := c.Mime
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(c.Path))
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return withDrive(ctx, g, func(a *app) error {
		rec, err := a.dispatcher.Upload(ctx, drive.Upload{
			Name:     name,
			MimeType: mimeType,
			ParentID: c.Parent,
			Body:     f,
		}).Unwrap()
		if err != nil {
			return err
		}
		fmt.Printf("Uploaded %s (%s)\n", rec.Name, rec.ID)
		return nil
	})
}

type DriveRmCmd struct {
	FileID string `arg:"" help:"File id"`
	Yes    bool   `short:"y" help:"Do not ask for confirmation"`
}

func (c *DriveRmCmd) Run(ctx context.Context, g *Globals) error {
	if !c.Yes {
		fmt.Printf("Delete %s? [y/N] ", c.FileID)
		var answer string
		_, _ = fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Cancelled")
			return nil
		}
	}

	return withDrive(ctx, g, func(a *app) error {
		if _, err := a.dispatcher.Delete(ctx, c.FileID).Unwrap(); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", c.FileID)
		return nil
	})
}
