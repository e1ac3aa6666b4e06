package newton

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// DefaultCompliance controls soft constraint stiffness for contact resolution.
	// Lower values = stiffer contacts (less penetration, potential jitter)
	// Higher values = softer contacts (more penetration, smoother)
	DefaultCompliance = 1e-7
)

// ContactPoint is one point of a contact manifold, in world space
type ContactPoint struct {
	Position    mgl64.Vec3
	Penetration float64
}

// ContactJoint is the manifold between two bodies found in a step. The normal
// points from BodyA towards BodyB.
type ContactJoint struct {
	BodyA  *Body
	BodyB  *Body
	Points []ContactPoint
	Normal mgl64.Vec3

	// NormalImpulse is the impulse applied along the normal in the last
	// velocity solve
	NormalImpulse float64
}

// Other returns the body of the pair that is not body
func (c *ContactJoint) Other(body *Body) *Body {
	if c.BodyA == body {
		return c.BodyB
	}
	return c.BodyA
}

// NormalFrom returns the normal oriented away from body
func (c *ContactJoint) NormalFrom(body *Body) mgl64.Vec3 {
	if c.BodyB == body {
		return c.Normal.Mul(-1)
	}
	return c.Normal
}

func computeRestitution(matA, matB Material) float64 {
	return (matA.Restitution + matB.Restitution) / 2.0
}

func computeStaticFriction(matA, matB Material) float64 {
	return math.Sqrt(matA.StaticFriction * matB.StaticFriction)
}

func computeDynamicFriction(matA, matB Material) float64 {
	return math.Sqrt(matA.DynamicFriction * matB.DynamicFriction)
}

func clampSmallVelocities(b *Body) {
	const velocityThreshold = 1e-5

	if b.velocity.Len() < velocityThreshold {
		b.velocity = mgl64.Vec3{}
	}
	if b.omega.Len() < velocityThreshold {
		b.omega = mgl64.Vec3{}
	}
}

func moves(b *Body) bool {
	return b.bodyType == BodyTypeDynamic && !b.isSleeping
}

// solvePosition resolves penetration (PBD style, no lambda accumulation)
func (c *ContactJoint) solvePosition(dt float64) {
	if len(c.Points) == 0 {
		return
	}
	bodyA, bodyB := c.BodyA, c.BodyB
	if !moves(bodyA) && !moves(bodyB) {
		return
	}

	invMassA, invMassB := bodyA.invMass, bodyB.invMass
	IAInv := bodyA.InverseInertiaWorld()
	IBInv := bodyB.InverseInertiaWorld()
	comA, comB := bodyA.WorldCenterOfMass(), bodyB.WorldCenterOfMass()

	var totalWeight, totalPenetration float64
	for _, point := range c.Points {
		if point.Penetration <= 1e-8 {
			continue
		}
		rA := point.Position.Sub(comA).Cross(c.Normal)
		rB := point.Position.Sub(comB).Cross(c.Normal)

		totalWeight += invMassA + IAInv.Mul3x1(rA).Dot(rA)
		totalWeight += invMassB + IBInv.Mul3x1(rB).Dot(rB)
		totalPenetration += point.Penetration
	}
	if totalWeight <= 1e-8 {
		return
	}

	alphaTilde := DefaultCompliance / (dt * dt)
	deltaLambda := -totalPenetration / (totalWeight + alphaTilde)
	totalImpulse := c.Normal.Mul(deltaLambda)

	if moves(bodyA) {
		bodyA.transform.Position = bodyA.transform.Position.Add(totalImpulse.Mul(invMassA))
	}
	if moves(bodyB) {
		bodyB.transform.Position = bodyB.transform.Position.Sub(totalImpulse.Mul(invMassB))
	}

	// accumulate the moments of all points, then apply a single rotation
	var torqueA, torqueB mgl64.Vec3
	for _, point := range c.Points {
		if point.Penetration <= 1e-8 {
			continue
		}
		torqueA = torqueA.Add(point.Position.Sub(comA).Cross(totalImpulse))
		torqueB = torqueB.Add(point.Position.Sub(comB).Cross(totalImpulse.Mul(-1)))
	}

	rotate := func(b *Body, delta mgl64.Vec3) {
		if !moves(b) || delta.Len() <= 1e-10 {
			return
		}
		qDelta := mgl64.Quat{W: 1.0, V: delta.Mul(0.5)}.Normalize()
		b.transform.Rotation = qDelta.Mul(b.transform.Rotation).Normalize()
	}
	rotate(bodyA, IAInv.Mul3x1(torqueA))
	rotate(bodyB, IBInv.Mul3x1(torqueB))
}

// solveVelocity applies restitution and Coulomb friction
func (c *ContactJoint) solveVelocity(dt float64) {
	if len(c.Points) == 0 {
		return
	}
	bodyA, bodyB := c.BodyA, c.BodyB
	if !moves(bodyA) && !moves(bodyB) {
		return
	}

	invMassA, invMassB := bodyA.invMass, bodyB.invMass
	IAInv := bodyA.InverseInertiaWorld()
	IBInv := bodyB.InverseInertiaWorld()
	comA, comB := bodyA.WorldCenterOfMass(), bodyB.WorldCenterOfMass()

	restitution := computeRestitution(bodyA.Material, bodyB.Material)
	staticFriction := computeStaticFriction(bodyA.Material, bodyB.Material)
	dynamicFriction := computeDynamicFriction(bodyA.Material, bodyB.Material)

	var linearA, linearB, angularA, angularB mgl64.Vec3
	c.NormalImpulse = 0

	for _, point := range c.Points {
		rA := point.Position.Sub(comA)
		rB := point.Position.Sub(comB)

		vA := bodyA.velocity.Add(bodyA.omega.Cross(rA))
		vB := bodyB.velocity.Add(bodyB.omega.Cross(rB))
		relativeVel := vB.Sub(vA)
		normalVel := relativeVel.Dot(c.Normal)

		vAPrev := bodyA.presolveVelocity.Add(bodyA.presolveOmega.Cross(rA))
		vBPrev := bodyB.presolveVelocity.Add(bodyB.presolveOmega.Cross(rB))
		normalVelPrev := vBPrev.Sub(vAPrev).Dot(c.Normal)

		rAn := rA.Cross(c.Normal)
		rBn := rB.Cross(c.Normal)
		effectiveMassNormal := invMassA + invMassB + IAInv.Mul3x1(rAn).Dot(rAn) + IBInv.Mul3x1(rBn).Dot(rBn)
		if effectiveMassNormal < 1e-10 {
			continue
		}

		targetVel := -restitution * normalVelPrev
		lambdaNormal := (targetVel - normalVel) / effectiveMassNormal
		// never pull the bodies together
		if lambdaNormal < 0 {
			lambdaNormal = 0
		}
		c.NormalImpulse += lambdaNormal

		normalImpulse := c.Normal.Mul(lambdaNormal)
		linearA = linearA.Sub(normalImpulse.Mul(invMassA))
		linearB = linearB.Add(normalImpulse.Mul(invMassB))
		angularA = angularA.Add(IAInv.Mul3x1(rA.Cross(normalImpulse.Mul(-1))))
		angularB = angularB.Add(IBInv.Mul3x1(rB.Cross(normalImpulse)))

		if lambdaNormal <= 0 {
			continue
		}
		tangentVel := relativeVel.Sub(c.Normal.Mul(normalVel))
		tangentSpeed := tangentVel.Len()
		if tangentSpeed <= 1e-6 {
			continue
		}
		tangentDir := tangentVel.Mul(1.0 / tangentSpeed)

		rAt := rA.Cross(tangentDir)
		rBt := rB.Cross(tangentDir)
		effectiveMassTangent := invMassA + invMassB + IAInv.Mul3x1(rAt).Dot(rAt) + IBInv.Mul3x1(rBt).Dot(rBt)
		if effectiveMassTangent < 1e-10 {
			continue
		}

		// Coulomb: |F_friction| <= mu * |F_normal|
		lambdaTangent := -tangentSpeed / effectiveMassTangent
		var frictionImpulse mgl64.Vec3
		if math.Abs(lambdaTangent) <= staticFriction*lambdaNormal {
			frictionImpulse = tangentDir.Mul(lambdaTangent)
		} else {
			frictionImpulse = tangentDir.Mul(-dynamicFriction * lambdaNormal)
		}

		linearA = linearA.Sub(frictionImpulse.Mul(invMassA))
		linearB = linearB.Add(frictionImpulse.Mul(invMassB))
		angularA = angularA.Add(IAInv.Mul3x1(rA.Cross(frictionImpulse.Mul(-1))))
		angularB = angularB.Add(IBInv.Mul3x1(rB.Cross(frictionImpulse)))
	}

	if moves(bodyA) {
		bodyA.velocity = bodyA.velocity.Add(linearA)
		bodyA.omega = bodyA.omega.Add(angularA)
		clampSmallVelocities(bodyA)
	}
	if moves(bodyB) {
		bodyB.velocity = bodyB.velocity.Add(linearB)
		bodyB.omega = bodyB.omega.Add(angularB)
		clampSmallVelocities(bodyB)
	}
}
