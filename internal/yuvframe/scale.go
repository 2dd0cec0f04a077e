package yuvframe

import "fmt"

// ScaleRect box-filter-scales the sub-rectangle [srcX,srcY,srcW,srcH) of
// src into the sub-rectangle [dstX,dstY,dstW,dstH) of dst, independently
// per plane, honoring the 4:2:0 half-resolution chroma planes. It mirrors
// the semantics of libyuv's I420Scale(kFilterBox): each destination pixel
// is the average of the source pixels it covers.
//
// Returns an error if any rectangle falls outside its frame's bounds;
// callers are expected to log and skip the region on error, not abort
// the composite.
func ScaleRect(dst *Frame, dstX, dstY, dstW, dstH int, src *Frame, srcX, srcY, srcW, srcH int) error {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return fmt.Errorf("yuvframe: degenerate scale rect src=%dx%d dst=%dx%d", srcW, srcH, dstW, dstH)
	}
	if srcX < 0 || srcY < 0 || srcX+srcW > src.W || srcY+srcH > src.H {
		return fmt.Errorf("yuvframe: source rect (%d,%d,%d,%d) out of bounds %dx%d", srcX, srcY, srcW, srcH, src.W, src.H)
	}
	if dstX < 0 || dstY < 0 || dstX+dstW > dst.W || dstY+dstH > dst.H {
		return fmt.Errorf("yuvframe: dest rect (%d,%d,%d,%d) out of bounds %dx%d", dstX, dstY, dstW, dstH, dst.W, dst.H)
	}

	scalePlane(dst.PlaneY, dst.StrideY, dstX, dstY, dstW, dstH,
		src.PlaneY, src.StrideY, srcX, srcY, srcW, srcH)

	// Chroma planes operate at half resolution; round the same way the
	// luma rectangle was rounded so U/V line up with Y.
	scalePlane(dst.PlaneU, dst.StrideU, dstX/2, dstY/2, (dstW+1)/2, (dstH+1)/2,
		src.PlaneU, src.StrideU, srcX/2, srcY/2, (srcW+1)/2, (srcH+1)/2)
	scalePlane(dst.PlaneV, dst.StrideV, dstX/2, dstY/2, (dstW+1)/2, (dstH+1)/2,
		src.PlaneV, src.StrideV, srcX/2, srcY/2, (srcW+1)/2, (srcH+1)/2)

	return nil
}

// scalePlane box-filters one plane's sub-rectangle into another's. Every
// destination pixel accumulates the average of the source box it maps
// to, so both up- and down-scaling stay smooth rather than aliasing.
func scalePlane(dst []byte, dstStride, dstX, dstY, dstW, dstH int,
	src []byte, srcStride, srcX, srcY, srcW, srcH int) {
	if dstW <= 0 || dstH <= 0 || srcW <= 0 || srcH <= 0 {
		return
	}

	for dy := 0; dy < dstH; dy++ {
		sy0 := srcY + dy*srcH/dstH
		sy1 := srcY + (dy+1)*srcH/dstH
		if sy1 <= sy0 {
			sy1 = sy0 + 1
		}
		if sy1 > srcY+srcH {
			sy1 = srcY + srcH
		}

		dstRow := dst[(dstY+dy)*dstStride+dstX : (dstY+dy)*dstStride+dstX+dstW]

		for dx := 0; dx < dstW; dx++ {
			sx0 := srcX + dx*srcW/dstW
			sx1 := srcX + (dx+1)*srcW/dstW
			if sx1 <= sx0 {
				sx1 = sx0 + 1
			}
			if sx1 > srcX+srcW {
				sx1 = srcX + srcW
			}

			var sum, count int
			for sy := sy0; sy < sy1; sy++ {
				row := src[sy*srcStride:]
				for sx := sx0; sx < sx1; sx++ {
					sum += int(row[sx])
					count++
				}
			}
			if count == 0 {
				continue
			}
			dstRow[dx] = byte(sum / count)
		}
	}
}
