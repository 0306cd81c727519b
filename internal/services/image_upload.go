package services

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	MaxImageSize = 10 << 20

	imageMaxWidth = 1600
	thumbWidth    = 400
	thumbHeight   = 225
)

var allowedImageTypes = map[string]imaging.Format{
	"image/jpeg": imaging.JPEG,
	"image/png":  imaging.PNG,
	"image/gif":  imaging.GIF,
}

// ImageUploadResult 上传结果
type ImageUploadResult struct {
	URL      string `json:"url"`
	ThumbURL string `json:"thumb_url"`
	ID       string `json:"id"`
}

// ImageService stores uploaded images under dir, served at urlPrefix.
type ImageService struct {
	dir       string
	urlPrefix string
}

func NewImageService(dir, urlPrefix string) *ImageService {
	return &ImageService{dir: dir, urlPrefix: urlPrefix}
}

// Save sniffs the content type, shrinks images wider than 1600px and writes
// the image with a cropped thumbnail under uuid-based names.
func (s *ImageService) Save(r io.Reader) (*ImageUploadResult, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}
	if len(data) > MaxImageSize {
		return nil, invalid(ErrInvalidImage, "image", "图片不能超过10MB。")
	}

	mtype := mimetype.Detect(data)
	format, ok := allowedImageTypes[mtype.String()]
	if !ok {
		return nil, ErrInvalidImage
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, invalid(ErrInvalidImage, "image", "无法解析图片。")
	}
	if img.Bounds().Dx() > imageMaxWidth {
		img = imaging.Resize(img, imageMaxWidth, 0, imaging.Lanczos)
	}
	thumb := imaging.Fill(img, thumbWidth, thumbHeight, imaging.Center, imaging.Lanczos)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("创建目录失败: %w", err)
	}

	id := uuid.NewString()
	ext := mtype.Extension()
	name := id + ext
	thumbName := id + "_thumb" + ext
	if err := s.write(name, img, format); err != nil {
		return nil, err
	}
	if err := s.write(thumbName, thumb, format); err != nil {
		return nil, err
	}

	return &ImageUploadResult{
		URL:      s.urlPrefix + "/" + name,
		ThumbURL: s.urlPrefix + "/" + thumbName,
		ID:       id,
	}, nil
}

func (s *ImageService) write(name string, img image.Image, format imaging.Format) error {
	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return fmt.Errorf("保存图片失败: %w", err)
	}
	defer f.Close()
	if err := imaging.Encode(f, img, format); err != nil {
		return fmt.Errorf("保存图片失败: %w", err)
	}
	return nil
}
