package epa

import (
	"math"

	"github.com/akmonengine/xpbd/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// clipTolerance keeps points lying on a clipping plane
const clipTolerance = 1e-6

// Clip builds a single averaged contact pair from the extreme features of both shapes.
//
// The feature with the most points (a face) is the reference; the other one (the incident
// feature) is clipped against the side planes of the reference (Sutherland-Hodgman). The
// clipped points that penetrate the reference plane are averaged, and the average is
// projected onto the reference plane to get the point on the other shape.
//
// normal points from B toward A. ok is false when neither feature is a face or when no
// clipped point penetrates; the caller keeps the EPA contact points in that case.
func Clip(a, b actor.Collider, normal mgl64.Vec3) (pointA, pointB mgl64.Vec3, ok bool) {
	featureA := a.SupportFeatureWorld(normal.Mul(-1))
	featureB := b.SupportFeatureWorld(normal)

	if len(featureA) < 3 && len(featureB) < 3 {
		return pointA, pointB, false
	}

	if len(featureA) >= len(featureB) {
		// Points of B inside A lie on the +normal side of A's face
		average, found := clipAndAverage(featureB, featureA, normal, 1)
		if !found {
			return pointA, pointB, false
		}
		pointB = average
		pointA = average.Sub(normal.Mul(average.Sub(featureA[0]).Dot(normal)))

		return pointA, pointB, true
	}

	// Points of A inside B lie on the -normal side of B's face
	average, found := clipAndAverage(featureA, featureB, normal, -1)
	if !found {
		return pointA, pointB, false
	}
	pointA = average
	pointB = average.Sub(normal.Mul(average.Sub(featureB[0]).Dot(normal)))

	return pointA, pointB, true
}

// clipAndAverage clips incident against reference and averages the points whose signed
// distance to the reference plane, measured along side*normal, is not negative
func clipAndAverage(incident, reference []mgl64.Vec3, normal mgl64.Vec3, side float64) (mgl64.Vec3, bool) {
	clipped := clipIncidentAgainstReference(incident, reference, normal)

	var sum mgl64.Vec3
	count := 0
	for _, point := range clipped {
		if point.Sub(reference[0]).Dot(normal)*side >= -clipTolerance {
			sum = sum.Add(point)
			count++
		}
	}

	if count == 0 {
		return mgl64.Vec3{}, false
	}

	return sum.Mul(1.0 / float64(count)), true
}

// clipIncidentAgainstReference clips the incident feature against every side plane of the
// reference face; side planes contain a reference edge and the contact normal.
func clipIncidentAgainstReference(incident, reference []mgl64.Vec3, normal mgl64.Vec3) []mgl64.Vec3 {
	output := incident
	center := computeCenter(reference)

	for i := 0; i < len(reference); i++ {
		if len(output) == 0 {
			break
		}

		v1 := reference[i]
		v2 := reference[(i+1)%len(reference)]

		clipNormal := actor.Normalize(v2.Sub(v1).Cross(normal))
		if clipNormal == (mgl64.Vec3{}) {
			continue
		}

		// Keep the side facing the center of the reference face
		if center.Sub(v1).Dot(clipNormal) < 0 {
			clipNormal = clipNormal.Mul(-1)
		}

		if len(output) == 2 {
			output = clipSegmentAgainstPlane(output, v1, clipNormal)
		} else {
			output = clipPolygonAgainstPlane(output, v1, clipNormal)
		}
	}

	return output
}

// clipPolygonAgainstPlane keeps the part of the polygon on the positive side of the plane
func clipPolygonAgainstPlane(polygon []mgl64.Vec3, planePoint, planeNormal mgl64.Vec3) []mgl64.Vec3 {
	if len(polygon) == 0 {
		return polygon
	}

	output := make([]mgl64.Vec3, 0, len(polygon)+1)
	for i := 0; i < len(polygon); i++ {
		current := polygon[i]
		next := polygon[(i+1)%len(polygon)]

		currentDist := current.Sub(planePoint).Dot(planeNormal)
		nextDist := next.Sub(planePoint).Dot(planeNormal)

		if currentDist >= -clipTolerance {
			output = append(output, current)

			if nextDist < -clipTolerance {
				output = append(output, lineIntersectPlane(current, next, planePoint, planeNormal))
			}
		} else if nextDist >= -clipTolerance {
			output = append(output, lineIntersectPlane(current, next, planePoint, planeNormal))
		}
	}

	return output
}

// clipSegmentAgainstPlane is clipPolygonAgainstPlane for a 2 point feature (an edge)
func clipSegmentAgainstPlane(segment []mgl64.Vec3, planePoint, planeNormal mgl64.Vec3) []mgl64.Vec3 {
	p1, p2 := segment[0], segment[1]
	d1 := p1.Sub(planePoint).Dot(planeNormal)
	d2 := p2.Sub(planePoint).Dot(planeNormal)

	switch {
	case d1 >= -clipTolerance && d2 >= -clipTolerance:
		return segment
	case d1 < -clipTolerance && d2 < -clipTolerance:
		return nil
	case d1 < -clipTolerance:
		return []mgl64.Vec3{lineIntersectPlane(p1, p2, planePoint, planeNormal), p2}
	default:
		return []mgl64.Vec3{p1, lineIntersectPlane(p1, p2, planePoint, planeNormal)}
	}
}

func lineIntersectPlane(p1, p2, planePoint, planeNormal mgl64.Vec3) mgl64.Vec3 {
	dir := p2.Sub(p1)
	dist := p1.Sub(planePoint).Dot(planeNormal)
	denom := dir.Dot(planeNormal)

	if math.Abs(denom) < 1e-10 {
		return p1 // Segment parallel to plane
	}

	t := -dist / denom
	t = math.Max(0, math.Min(1, t)) // Clamp to segment

	return p1.Add(dir.Mul(t))
}

func computeCenter(points []mgl64.Vec3) mgl64.Vec3 {
	if len(points) == 0 {
		return mgl64.Vec3{0, 0, 0}
	}

	sum := mgl64.Vec3{0, 0, 0}
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Mul(1.0 / float64(len(points)))
}
