package video

import (
	"errors"

	"gocv.io/x/gocv"

	"MeasuresServer/facecrop"
)

// FrameToMat copies the raster into a BGR OpenCV Mat. The caller owns
// the Mat and must Close it.
func FrameToMat(f *facecrop.Frame) (gocv.Mat, error) {
	return gocv.NewMatFromBytes(f.H, f.W, gocv.MatTypeCV8UC3, f.Pix)
}

// MatToFrame copies a BGR Mat into a Frame.
func MatToFrame(mat gocv.Mat) *facecrop.Frame {
	return &facecrop.Frame{Pix: mat.ToBytes(), W: mat.Cols(), H: mat.Rows()}
}

// DecodeImage decodes an encoded still image (JPEG, PNG) into a Frame.
// An empty Mat means the payload was not decodable.
func DecodeImage(data []byte) (*facecrop.Frame, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, err
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, errors.New("decode image: not a decodable image")
	}
	return MatToFrame(mat), nil
}

// EncodeJPEG encodes a Frame as JPEG bytes.
func EncodeJPEG(f *facecrop.Frame) ([]byte, error) {
	mat, err := FrameToMat(f)
	if err != nil {
		return nil, err
	}
	defer mat.Close()
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	// GetBytes views native memory, copy before the buffer is released.
	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data, nil
}
